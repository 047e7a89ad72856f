package audithttp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/backlog-dim/backlog-dim/internal/audit"
	"github.com/backlog-dim/backlog-dim/internal/platform/httpx"
	"github.com/backlog-dim/backlog-dim/internal/rbac"
)

const (
	defaultDateRange  = 7 * 24 * time.Hour
	maxDateRangeHours = 24 * 90
	dateLayout        = "2006-01-02"
)

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.Entry, error)
}

// Handler serves the audit trail.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	gate    *rbac.Gate
	now     func() time.Time
}

// NewHandler builds an audit handler.
func NewHandler(logger *slog.Logger, service TimelineService, gate *rbac.Gate) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, gate: gate, now: time.Now}
}

func (h *Handler) timeline(ctx context.Context, req rbac.Request) (rbac.Response, error) {
	filters, err := h.parseFilters(req.HTTP)
	if err != nil {
		return rbac.Response{}, err
	}
	result, err := h.service.Timeline(ctx, filters)
	if err != nil {
		return rbac.Response{}, fmt.Errorf("load audit timeline: %w", err)
	}
	return rbac.Response{Body: result}, nil
}

func (h *Handler) export(ctx context.Context, req rbac.Request) (rbac.Response, error) {
	filters, err := h.parseFilters(req.HTTP)
	if err != nil {
		return rbac.Response{}, err
	}
	rows, err := h.service.Export(ctx, filters)
	if err != nil {
		return rbac.Response{}, fmt.Errorf("export audit timeline: %w", err)
	}
	data, err := audit.WriteCSV(rows)
	if err != nil {
		return rbac.Response{}, fmt.Errorf("encode csv: %w", err)
	}
	header := http.Header{}
	header.Set("Content-Type", "text/csv; charset=utf-8")
	header.Set("Content-Disposition", `attachment; filename="auditoria.csv"`)
	return rbac.Response{Raw: data, Header: header}, nil
}

func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	now := h.now().UTC()
	toStr := strings.TrimSpace(q.Get("to"))
	if toStr == "" {
		toStr = now.Format(dateLayout)
	}
	toTime, err := time.Parse(dateLayout, toStr)
	if err != nil {
		return audit.TimelineFilters{}, invalid("to")
	}
	fromStr := strings.TrimSpace(q.Get("from"))
	if fromStr == "" {
		fromStr = toTime.Add(-defaultDateRange).Format(dateLayout)
	}
	fromTime, err := time.Parse(dateLayout, fromStr)
	if err != nil {
		return audit.TimelineFilters{}, invalid("from")
	}
	if fromTime.After(toTime) || toTime.Sub(fromTime) > maxDateRangeHours*time.Hour {
		return audit.TimelineFilters{}, invalid("range")
	}

	page, err := positiveInt(q.Get("page"), 1)
	if err != nil {
		return audit.TimelineFilters{}, invalid("page")
	}
	pageSize, err := positiveInt(q.Get("page_size"), 0)
	if err != nil {
		return audit.TimelineFilters{}, invalid("page_size")
	}

	return audit.TimelineFilters{
		From:     fromTime,
		To:       toTime.Add(24 * time.Hour),
		Email:    strings.TrimSpace(q.Get("email")),
		Table:    strings.TrimSpace(q.Get("tabela")),
		Action:   strings.TrimSpace(q.Get("acao")),
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func positiveInt(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, httpx.ErrValidation
	}
	return v, nil
}

func invalid(field string) error {
	return fmt.Errorf("audit: invalid %s: %w", field, httpx.ErrValidation)
}

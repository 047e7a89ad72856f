package audit

import (
	"encoding/json"
	"time"
)

// Entry is one immutable audit record.
type Entry struct {
	ID        int64           `json:"id"`
	Table     string          `json:"tabela"`
	Action    string          `json:"acao"`
	UserID    *int64          `json:"userId,omitempty"`
	Email     string          `json:"email"`
	Context   string          `json:"contexto"`
	Before    json.RawMessage `json:"antes,omitempty"`
	After     json.RawMessage `json:"depois,omitempty"`
	IP        string          `json:"ip,omitempty"`
	UserAgent string          `json:"userAgent,omitempty"`
	CreatedAt time.Time       `json:"criadoEm"`
}

// TimelineFilters holds the optional filters for listing entries.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Email    string
	Table    string
	Action   string
	Page     int
	PageSize int
}

// PagingInfo carries simple page metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasNext  bool `json:"hasNext"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}

// Result wraps one timeline page.
type Result struct {
	Rows   []Entry    `json:"rows"`
	Paging PagingInfo `json:"paging"`
}

// Snapshot encodes v for the antes/depois columns. A nil value stays NULL.
func Snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}

package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/backlog-dim/backlog-dim/internal/audit"
	audithttp "github.com/backlog-dim/backlog-dim/internal/audit/http"
	"github.com/backlog-dim/backlog-dim/internal/auth"
	"github.com/backlog-dim/backlog-dim/internal/metadata"
	"github.com/backlog-dim/backlog-dim/internal/observability"
	"github.com/backlog-dim/backlog-dim/internal/processos"
	"github.com/backlog-dim/backlog-dim/internal/profiles"
	"github.com/backlog-dim/backlog-dim/internal/rbac"
	"github.com/backlog-dim/backlog-dim/internal/shared"
	"github.com/backlog-dim/backlog-dim/internal/users"
	"github.com/backlog-dim/backlog-dim/jobs"
)

// Dependencies are the process-level resources the HTTP application needs.
type Dependencies struct {
	Config  *Config
	Logger  *slog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics
	// AuditQueue receives audit entries when Config.AuditAsync is set.
	AuditQueue jobs.Enqueuer
	// Inspector backs the /api/jobs/health endpoint. Optional.
	Inspector *asynq.Inspector
}

// Application is the wired HTTP surface plus the handles main needs at runtime.
type Application struct {
	Handler http.Handler
	RBAC    *rbac.Service
	Cache   rbac.PermissionCache
}

// NewPermissionCache builds the cache selected by RBAC_CACHE_BACKEND. The memory
// backend broadcasts invalidations over Redis when a client is available.
func NewPermissionCache(cfg *Config, client *redis.Client) (rbac.PermissionCache, error) {
	switch cfg.RBACCacheBackend {
	case CacheBackendRedis:
		if client == nil {
			return nil, errors.New("redis permission cache requires a redis client")
		}
		return rbac.NewRedisCache(client, cfg.RBACCacheTTL), nil
	default:
		local := rbac.NewMemoryCache(cfg.RBACCacheTTL)
		if client == nil {
			return local, nil
		}
		return rbac.NewBroadcastCache(local, client), nil
	}
}

// UserAccounts adapts the users repository to the login account lookup.
func UserAccounts(repo *users.Repository) auth.AccountFinder {
	return auth.AccountFinderFunc(func(ctx context.Context, email string) (auth.Account, error) {
		u, err := repo.FindByEmail(ctx, email)
		if err != nil {
			return auth.Account{}, err
		}
		return auth.Account{ID: u.ID, Email: u.Email, PasswordHash: u.PasswordHash, Active: u.Active}, nil
	})
}

// Wire builds repositories, services and handlers, and returns the router.
func Wire(deps Dependencies) (*Application, error) {
	cfg := deps.Config
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	if deps.Pool == nil || deps.Redis == nil {
		return nil, errors.New("app: postgres and redis are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cache, err := NewPermissionCache(cfg, deps.Redis)
	if err != nil {
		return nil, err
	}
	rbacService := rbac.NewService(rbac.NewRepository(deps.Pool),
		rbac.WithCache(cache),
		rbac.WithMetrics(rbac.NewMetrics(deps.Metrics.Registerer())),
		rbac.WithLogger(logger),
	)

	auditRepo := audit.NewRepository(deps.Pool)
	var recorder rbac.AuditRecorder = auditRepo
	if cfg.AuditAsync {
		if deps.AuditQueue == nil {
			return nil, errors.New("app: AUDIT_ASYNC requires an audit queue")
		}
		recorder = jobs.NewAuditSink(deps.AuditQueue)
	}
	recorder = deps.Metrics.InstrumentAudit(recorder)

	userRepo := users.NewRepository(deps.Pool)
	sessions := shared.NewSessionManager(deps.Redis, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	identities := users.SessionIdentity{Users: userRepo}
	gate := rbac.NewGate(identities, rbacService, recorder, logger)

	metadataService := metadata.NewService(metadata.NewRepository(deps.Pool))
	var metadataHandlers []*metadata.Handler
	for _, kind := range metadata.Kinds() {
		metadataHandlers = append(metadataHandlers, metadata.NewHandler(kind, metadataService, gate))
	}

	var jobHandler *jobs.Handler
	if deps.Inspector != nil {
		jobHandler = jobs.NewHandler(deps.Inspector, logger)
	}

	router := NewRouter(RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessions,
		AuthHandler:      auth.NewHandler(logger, auth.NewService(UserAccounts(userRepo)), sessions, gate, rbacService),
		ProcessosHandler: processos.NewHandler(processos.NewService(processos.NewRepository(deps.Pool)), gate),
		MetadataHandlers: metadataHandlers,
		ProfilesHandler:  profiles.NewHandler(rbacService, gate),
		UsersHandler:     users.NewHandler(users.NewService(userRepo), gate),
		AuditHandler:     audithttp.NewHandler(logger, audit.NewService(auditRepo), gate),
		JobHandler:       jobHandler,
		RBACMiddleware:   &rbac.Middleware{Identities: identities, Authz: rbacService, Logger: logger},
		Metrics:          deps.Metrics,
		Ready: func(r *http.Request) error {
			if err := deps.Pool.Ping(r.Context()); err != nil {
				return err
			}
			return deps.Redis.Ping(r.Context()).Err()
		},
	})
	return &Application{Handler: router, RBAC: rbacService, Cache: cache}, nil
}

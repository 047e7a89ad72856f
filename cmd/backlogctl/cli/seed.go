package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/backlog-dim/backlog-dim/internal/auth"
	"github.com/backlog-dim/backlog-dim/internal/metadata"
	"github.com/backlog-dim/backlog-dim/internal/rbac"
	"github.com/backlog-dim/backlog-dim/internal/users"
)

// RBACAdmin is the subset of rbac.Service the CLI needs.
type RBACAdmin interface {
	ListProfiles(ctx context.Context) ([]rbac.Profile, error)
	CreateProfile(ctx context.Context, name string) (rbac.Profile, error)
	UpsertPermission(ctx context.Context, profileID int64, action, resource string, granted bool) (rbac.Permission, error)
	AddParent(ctx context.Context, childID, parentID int64) error
	ResolveEffectivePermissions(ctx context.Context, profile string) ([]rbac.Grant, error)
}

// UserStore registers the bootstrap administrator.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (users.User, error)
	Create(ctx context.Context, in users.NewUser) (int64, error)
}

// CatalogCreator inserts reference metadata.
type CatalogCreator interface {
	Create(ctx context.Context, kind metadata.Kind, name string) (metadata.Item, error)
}

var (
	_ RBACAdmin      = (*rbac.Service)(nil)
	_ UserStore      = (*users.Repository)(nil)
	_ CatalogCreator = (*metadata.Service)(nil)
)

var defaultCatalogs = map[string][]string{
	metadata.Situacoes.Slug:     {"Recebido", "Em análise", "Aguardando informações", "Respondido", "Arquivado"},
	metadata.FormasEntrada.Slug: {"E-mail", "Formulário eletrônico", "Ofício", "Presencial"},
	metadata.Setores.Slug:       {"Encarregado de Dados", "Jurídico", "Tecnologia da Informação", "Ouvidoria"},
}

type seedProfile struct {
	name   string
	parent string
	grants []rbac.Requirement
}

func grantsFor(resources []rbac.Resource, actions ...rbac.Action) []rbac.Requirement {
	var out []rbac.Requirement
	for _, res := range resources {
		for _, act := range actions {
			out = append(out, rbac.Requirement{Action: act, Resource: res})
		}
	}
	return out
}

var catalogResources = []rbac.Resource{rbac.ResourceSituacao, rbac.ResourceFormaEntrada, rbac.ResourceSetor}

// defaultProfiles is ordered parents first so edges can be added as we go.
var defaultProfiles = []seedProfile{
	{
		name: "Consulta",
		grants: append(
			grantsFor([]rbac.Resource{rbac.ResourceProcesso}, rbac.ActionExibir),
			grantsFor(catalogResources, rbac.ActionExibir)...,
		),
	},
	{
		name:   "Analista",
		parent: "Consulta",
		grants: grantsFor([]rbac.Resource{rbac.ResourceProcesso},
			rbac.ActionCadastrar, rbac.ActionEditar, rbac.ActionEncaminhar, rbac.ActionExportar),
	},
	{
		name:   "Gestor",
		parent: "Analista",
		grants: append(append(
			grantsFor([]rbac.Resource{rbac.ResourceProcesso}, rbac.ActionAtribuir, rbac.ActionExcluir, rbac.ActionAprovar),
			grantsFor(catalogResources, rbac.ActionCadastrar, rbac.ActionEditar, rbac.ActionDesativar, rbac.ActionReativar)...),
			grantsFor([]rbac.Resource{rbac.ResourceUsuario, rbac.ResourceAuditLog}, rbac.ActionExibir)...,
		),
	},
	{
		name:   "Administrador",
		parent: "Gestor",
		grants: append(
			grantsFor([]rbac.Resource{rbac.ResourcePerfil, rbac.ResourcePermissao}, rbac.Actions()...),
			grantsFor([]rbac.Resource{rbac.ResourceUsuario, rbac.ResourceAuditLog}, rbac.ActionAtribuir, rbac.ActionExportar)...,
		),
	},
}

// SeedOptions controls the bootstrap administrator.
type SeedOptions struct {
	AdminEmail    string
	AdminName     string
	AdminPassword string
}

// SeedResult reports what the seed created.
type SeedResult struct {
	ProfilesCreated int
	Permissions     int
	CatalogItems    int
	AdminCreated    bool
}

// Seed installs the default profile hierarchy and an administrator. Running it
// twice is harmless.
func Seed(ctx context.Context, b *Backend, opts SeedOptions) (SeedResult, error) {
	var res SeedResult
	existing, err := b.RBAC.ListProfiles(ctx)
	if err != nil {
		return res, err
	}
	ids := make(map[string]int64, len(existing))
	for _, p := range existing {
		ids[p.Name] = p.ID
	}

	for _, sp := range defaultProfiles {
		id, ok := ids[sp.name]
		if !ok {
			p, err := b.RBAC.CreateProfile(ctx, sp.name)
			if err != nil {
				return res, fmt.Errorf("seed: create profile %s: %w", sp.name, err)
			}
			id = p.ID
			ids[sp.name] = id
			res.ProfilesCreated++
		}
		for _, g := range sp.grants {
			if _, err := b.RBAC.UpsertPermission(ctx, id, string(g.Action), string(g.Resource), true); err != nil {
				return res, fmt.Errorf("seed: grant %s to %s: %w", g, sp.name, err)
			}
			res.Permissions++
		}
		if sp.parent != "" {
			err := b.RBAC.AddParent(ctx, id, ids[sp.parent])
			if err != nil && !errors.Is(err, rbac.ErrDuplicate) {
				return res, fmt.Errorf("seed: %s inherits %s: %w", sp.name, sp.parent, err)
			}
		}
	}

	if b.Catalogs != nil {
		for _, kind := range metadata.Kinds() {
			for _, name := range defaultCatalogs[kind.Slug] {
				_, err := b.Catalogs.Create(ctx, kind, name)
				if errors.Is(err, metadata.ErrDuplicate) {
					continue
				}
				if err != nil {
					return res, fmt.Errorf("seed: %s %q: %w", kind.Slug, name, err)
				}
				res.CatalogItems++
			}
		}
	}

	if opts.AdminEmail == "" {
		return res, nil
	}
	_, err = b.Users.FindByEmail(ctx, opts.AdminEmail)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, users.ErrNotFound) {
		return res, err
	}
	if len(opts.AdminPassword) < 8 {
		return res, errors.New("seed: admin password must have at least 8 characters")
	}
	hash, err := auth.HashPassword(opts.AdminPassword)
	if err != nil {
		return res, err
	}
	adminID := ids["Administrador"]
	if _, err := b.Users.Create(ctx, users.NewUser{
		Email:        strings.ToLower(strings.TrimSpace(opts.AdminEmail)),
		Name:         opts.AdminName,
		PasswordHash: hash,
		ProfileID:    &adminID,
	}); err != nil {
		return res, fmt.Errorf("seed: create admin: %w", err)
	}
	res.AdminCreated = true
	return res, nil
}

func newSeedCmd(withBackend func(*cobra.Command, func(*Backend) error) error) *cobra.Command {
	opts := SeedOptions{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Install default profiles, permissions and the admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.AdminPassword == "" {
				opts.AdminPassword = os.Getenv("BACKLOG_ADMIN_PASSWORD")
			}
			return withBackend(cmd, func(b *Backend) error {
				res, err := Seed(cmd.Context(), b, opts)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "profiles created: %d, permissions upserted: %d, catalog items: %d, admin created: %t\n",
					res.ProfilesCreated, res.Permissions, res.CatalogItems, res.AdminCreated)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.AdminEmail, "admin-email", "admin@backlog.local", "Administrator email (empty skips the account)")
	cmd.Flags().StringVar(&opts.AdminName, "admin-name", "Administrador", "Administrator display name")
	cmd.Flags().StringVar(&opts.AdminPassword, "admin-password", "", "Administrator password (defaults to BACKLOG_ADMIN_PASSWORD)")
	return cmd
}

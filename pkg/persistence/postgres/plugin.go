package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/osvaldoandrade/budgetauth/pkg/domain"
	"github.com/osvaldoandrade/budgetauth/pkg/persistence"
)

// Config holds Postgres-specific configuration
type Config struct {
	DSN          string `json:"dsn"`
	MaxOpenConns int    `json:"maxOpenConns,omitempty"`
}

// Plugin reads users and families from the application's Postgres schema.
type Plugin struct {
	db *sql.DB
}

var _ persistence.Directory = (*Plugin)(nil)

// NewPlugin opens a pgx-backed pool from config
func NewPlugin(config persistence.PluginConfig) (persistence.Directory, error) {
	var cfg Config
	if err := json.Unmarshal(config.Config, &cfg); err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, errors.New("postgres directory: dsn is required")
	}
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 20
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns / 2)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Plugin{db: db}, nil
}

// New wraps an existing pool.
func New(db *sql.DB) *Plugin { return &Plugin{db: db} }

const userColumns = `id, email, name, password_hash, is_active, is_email_verified, family_id, role_in_family, created_at, updated_at`

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u                  domain.User
		name, familyID     sql.NullString
		role               sql.NullString
		createdAt, updated sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &name, &u.PasswordHash, &u.IsActive, &u.IsEmailVerified,
		&familyID, &role, &createdAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Name = name.String
	u.FamilyID = familyID.String
	u.RoleInFamily = role.String
	u.CreatedAt = createdAt.Time
	u.UpdatedAt = updated.Time
	return &u, nil
}

func (p *Plugin) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	row := p.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id)
	return scanUser(row)
}

func (p *Plugin) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := p.db.QueryRowContext(ctx, `select `+userColumns+` from users where lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (p *Plugin) FindFamilyByID(ctx context.Context, id string) (*domain.Family, error) {
	var (
		f                  domain.Family
		name               sql.NullString
		createdAt, updated sql.NullTime
	)
	err := p.db.QueryRowContext(ctx,
		`select id, name, owner_id, is_active, created_at, updated_at from families where id = $1`, id).
		Scan(&f.ID, &name, &f.OwnerID, &f.IsActive, &createdAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan family: %w", err)
	}
	f.Name = name.String
	f.CreatedAt = createdAt.Time
	f.UpdatedAt = updated.Time
	return &f, nil
}

func (p *Plugin) Health(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Plugin) Close() error { return p.db.Close() }

func init() {
	persistence.RegisterProvider("postgres", NewPlugin)
}

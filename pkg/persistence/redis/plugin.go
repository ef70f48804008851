package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/osvaldoandrade/budgetauth/pkg/domain"
	"github.com/osvaldoandrade/budgetauth/pkg/persistence"

	"github.com/go-redis/redis/v8"
)

// Config holds Redis-specific configuration
type Config struct {
	Addr      string `json:"addr"`
	Password  string `json:"password,omitempty"`
	DB        int    `json:"db,omitempty"`
	KeyPrefix string `json:"keyPrefix,omitempty"`
}

// Plugin keeps users and families as JSON records in Redis hashes
type Plugin struct {
	client *redis.Client
	prefix string
}

var _ persistence.Directory = (*Plugin)(nil)

// NewPlugin creates a new Redis directory plugin
func NewPlugin(config persistence.PluginConfig) (persistence.Directory, error) {
	var cfg Config
	if err := json.Unmarshal(config.Config, &cfg); err != nil {
		return nil, err
	}
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return New(client, cfg.KeyPrefix), nil
}

// New wraps an existing client. An empty prefix defaults to "budgetauth".
func New(client *redis.Client, prefix string) *Plugin {
	if prefix == "" {
		prefix = "budgetauth"
	}
	return &Plugin{client: client, prefix: prefix}
}

func (p *Plugin) keyUsers() string      { return p.prefix + ":users" }       // HASH: field = id, value = JSON
func (p *Plugin) keyUserEmails() string { return p.prefix + ":users:email" } // HASH: field = lower(email), value = id
func (p *Plugin) keyFamilies() string   { return p.prefix + ":families" }    // HASH: field = id, value = JSON

// userRecord is the stored form; domain.User never serializes the hash.
type userRecord struct {
	domain.User
	PasswordHash string `json:"passwordHash,omitempty"`
}

func (p *Plugin) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	v, err := p.client.HGet(ctx, p.keyUsers(), id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec userRecord
	if err := json.Unmarshal([]byte(v), &rec); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", id, err)
	}
	u := rec.User
	u.PasswordHash = rec.PasswordHash
	return &u, nil
}

func (p *Plugin) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	id, err := p.client.HGet(ctx, p.keyUserEmails(), normalizeEmail(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p.FindUserByID(ctx, id)
}

func (p *Plugin) FindFamilyByID(ctx context.Context, id string) (*domain.Family, error) {
	v, err := p.client.HGet(ctx, p.keyFamilies(), id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var f domain.Family
	if err := json.Unmarshal([]byte(v), &f); err != nil {
		return nil, fmt.Errorf("decode family %s: %w", id, err)
	}
	return &f, nil
}

// SaveUser writes a user record and its email index.
func (p *Plugin) SaveUser(ctx context.Context, u domain.User) error {
	b, err := json.Marshal(userRecord{User: u, PasswordHash: u.PasswordHash})
	if err != nil {
		return err
	}
	pipe := p.client.TxPipeline()
	pipe.HSet(ctx, p.keyUsers(), u.ID, string(b))
	if email := normalizeEmail(u.Email); email != "" {
		pipe.HSet(ctx, p.keyUserEmails(), email, u.ID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// SaveFamily writes a family record.
func (p *Plugin) SaveFamily(ctx context.Context, f domain.Family) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return p.client.HSet(ctx, p.keyFamilies(), f.ID, string(b)).Err()
}

// Health checks if Redis is healthy
func (p *Plugin) Health(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close releases Redis connection
func (p *Plugin) Close() error {
	return p.client.Close()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func init() {
	persistence.RegisterProvider("redis", NewPlugin)
}

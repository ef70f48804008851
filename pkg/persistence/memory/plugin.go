package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/osvaldoandrade/budgetauth/pkg/domain"
	"github.com/osvaldoandrade/budgetauth/pkg/persistence"
)

type config struct {
	Users    []seedUser      `json:"users"`
	Families []domain.Family `json:"families"`
}

// seedUser lets seed files carry the password hash, which domain.User never serializes.
type seedUser struct {
	domain.User
	PasswordHash string `json:"passwordHash"`
}

// Plugin is an in-memory directory for development and tests.
type Plugin struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	byEmail  map[string]string
	families map[string]domain.Family
}

func New() *Plugin {
	return &Plugin{
		users:    make(map[string]domain.User),
		byEmail:  make(map[string]string),
		families: make(map[string]domain.Family),
	}
}

// NewPlugin creates a memory directory seeded from config.
func NewPlugin(pc persistence.PluginConfig) (persistence.Directory, error) {
	var raw config
	if len(pc.Config) > 0 {
		if err := json.Unmarshal(pc.Config, &raw); err != nil {
			return nil, fmt.Errorf("memory directory config: %w", err)
		}
	}
	p := New()
	for _, f := range raw.Families {
		if err := p.AddFamily(f); err != nil {
			return nil, err
		}
	}
	for _, u := range raw.Users {
		user := u.User
		user.PasswordHash = u.PasswordHash
		if err := p.AddUser(user); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AddUser inserts a user; ids and emails must be unique.
func (p *Plugin) AddUser(u domain.User) error {
	if u.ID == "" {
		return fmt.Errorf("user id is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.users[u.ID]; ok {
		return fmt.Errorf("user %s: %w", u.ID, persistence.ErrAlreadyExists)
	}
	email := normalizeEmail(u.Email)
	if email != "" {
		if _, ok := p.byEmail[email]; ok {
			return fmt.Errorf("email %s: %w", email, persistence.ErrAlreadyExists)
		}
		p.byEmail[email] = u.ID
	}
	p.users[u.ID] = u
	return nil
}

// PutUser inserts or replaces a user.
func (p *Plugin) PutUser(u domain.User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.users[u.ID]; ok {
		delete(p.byEmail, normalizeEmail(old.Email))
	}
	if email := normalizeEmail(u.Email); email != "" {
		p.byEmail[email] = u.ID
	}
	p.users[u.ID] = u
}

func (p *Plugin) AddFamily(f domain.Family) error {
	if f.ID == "" {
		return fmt.Errorf("family id is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.families[f.ID]; ok {
		return fmt.Errorf("family %s: %w", f.ID, persistence.ErrAlreadyExists)
	}
	p.families[f.ID] = f
	return nil
}

// PutFamily inserts or replaces a family.
func (p *Plugin) PutFamily(f domain.Family) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.families[f.ID] = f
}

func (p *Plugin) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, ok := p.users[id]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return &u, nil
}

func (p *Plugin) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	u := p.users[id]
	return &u, nil
}

func (p *Plugin) FindFamilyByID(ctx context.Context, id string) (*domain.Family, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	f, ok := p.families[id]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return &f, nil
}

// Health always returns nil for in-memory storage
func (p *Plugin) Health(ctx context.Context) error {
	return nil
}

// Close is a no-op for in-memory storage
func (p *Plugin) Close() error {
	return nil
}

func init() {
	persistence.RegisterProvider("memory", NewPlugin)
}

package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/singleflight"

	"github.com/osvaldoandrade/budgetauth/internal/backoff"
)

var (
	// ErrConnectionRefused is returned once the refusal ceiling is reached.
	ErrConnectionRefused = errors.New("redis connection refused")
	// ErrConnectTimeout is returned when no connection was established in time.
	ErrConnectTimeout = errors.New("redis connect timeout")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("redis connector closed")
)

// ConnState is the lifecycle state of a RedisConnector.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateReady
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	default:
		return "disconnected"
	}
}

type ConnectorConfig struct {
	URL                string
	ConnectTimeout     time.Duration
	MaxConnectAttempts int
	Backoff            backoff.Policy
	// Dialer overrides the network dialer; used by tests.
	Dialer func(ctx context.Context, network, addr string) (net.Conn, error)
}

// RedisConnector owns a lazily established redis client. Concurrent callers
// share a single in-flight connect.
type RedisConnector struct {
	cfg    ConnectorConfig
	opts   *redis.Options
	logger *slog.Logger

	group singleflight.Group

	mu     sync.RWMutex
	client *redis.Client
	closed bool

	state    atomic.Int32
	attempts atomic.Int64
}

func NewRedisConnector(cfg ConnectorConfig, logger *slog.Logger) (*RedisConnector, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	// Retries are driven by the connector, not the client.
	opts.MaxRetries = -1
	if cfg.Dialer != nil {
		opts.Dialer = cfg.Dialer
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if cfg.MaxConnectAttempts <= 0 {
		cfg.MaxConnectAttempts = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisConnector{cfg: cfg, opts: opts, logger: logger}, nil
}

func (c *RedisConnector) State() ConnState {
	return ConnState(c.state.Load())
}

// ConnectAttempts returns the number of ping attempts made so far.
func (c *RedisConnector) ConnectAttempts() int64 {
	return c.attempts.Load()
}

// Client returns a ready client, connecting first if needed. ctx bounds only
// the caller's wait; the shared connect runs to completion on its own.
func (c *RedisConnector) Client(ctx context.Context) (*redis.Client, error) {
	c.mu.RLock()
	client, closed := c.client, c.closed
	c.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if client != nil && c.State() == StateReady {
		return client, nil
	}

	ch := c.group.DoChan("connect", func() (any, error) {
		return c.connect()
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*redis.Client), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *RedisConnector) connect() (*redis.Client, error) {
	c.mu.RLock()
	if c.client != nil && c.State() == StateReady {
		client := c.client
		c.mu.RUnlock()
		return client, nil
	}
	c.mu.RUnlock()

	c.state.Store(int32(StateConnecting))
	start := time.Now()
	deadline := start.Add(c.cfg.ConnectTimeout)
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	refusals := 0
	for attempt := 0; ; attempt++ {
		c.attempts.Add(1)
		client := redis.NewClient(c.opts)
		err := client.Ping(ctx).Err()
		if err == nil {
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				_ = client.Close()
				c.state.Store(int32(StateDisconnected))
				return nil, ErrClosed
			}
			old := c.client
			c.client = client
			c.state.Store(int32(StateReady))
			c.mu.Unlock()
			if old != nil {
				_ = old.Close()
			}
			c.logger.Info("redis connected", "addr", c.opts.Addr, "attempts", attempt+1, "elapsed", time.Since(start).String())
			return client, nil
		}
		_ = client.Close()

		if IsConnectionRefused(err) {
			refusals++
			if refusals >= c.cfg.MaxConnectAttempts {
				c.state.Store(int32(StateDisconnected))
				c.logger.Error("redis connection refused", "addr", c.opts.Addr, "refusals", refusals)
				return nil, fmt.Errorf("%w after %d attempts: %v", ErrConnectionRefused, refusals, err)
			}
		}
		delay := c.cfg.Backoff.Delay(attempt)
		if time.Now().Add(delay).After(deadline) {
			c.state.Store(int32(StateDisconnected))
			c.logger.Error("redis connect timed out", "addr", c.opts.Addr, "attempts", attempt+1, "err", err)
			return nil, fmt.Errorf("%w after %s: %v", ErrConnectTimeout, c.cfg.ConnectTimeout, err)
		}
		c.logger.Warn("redis connect failed, retrying", "addr", c.opts.Addr, "attempt", attempt+1, "delay", delay.String(), "err", err)
		time.Sleep(delay)
	}
}

// Observe marks the connector disconnected when err is a connection-level
// failure so the next Client call reconnects.
func (c *RedisConnector) Observe(err error) {
	if err == nil || !IsConnectionError(err) {
		return
	}
	if c.state.CompareAndSwap(int32(StateReady), int32(StateDisconnected)) {
		c.logger.Warn("redis connection lost", "err", err)
	}
}

// Ping checks the current connection without triggering a connect.
func (c *RedisConnector) Ping(ctx context.Context) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil || c.State() != StateReady {
		return errors.New("redis not connected")
	}
	err := client.Ping(ctx).Err()
	c.Observe(err)
	return err
}

func (c *RedisConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.state.Store(int32(StateDisconnected))
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

// IsConnectionRefused reports whether err is an ECONNREFUSED dial failure.
func IsConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

// IsConnectionError reports whether err indicates the link itself failed, as
// opposed to a command-level reply such as redis.Nil.
func IsConnectionError(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, redis.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) ||
		IsConnectionRefused(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

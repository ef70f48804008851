package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/osvaldoandrade/budgetauth/internal/backoff"
	"github.com/osvaldoandrade/budgetauth/internal/providers"
	"github.com/osvaldoandrade/budgetauth/pkg/config"
	"github.com/osvaldoandrade/budgetauth/pkg/token"
)

// serverConfig loads the service configuration used by commands that act on
// signing secrets or the revocation store directly.
func serverConfig(g *globals) (*config.Config, error) {
	return config.LoadConfigOptional(g.serverCfg)
}

func newCodec(cfg *config.Config) (*token.Codec, error) {
	return token.NewCodec(token.Config{
		AccessSecret:         cfg.JWTAccessSecret,
		RefreshSecret:        cfg.JWTRefreshSecret,
		AccessTTL:            cfg.AccessTokenTTL,
		RefreshTTL:           cfg.RefreshTokenTTL,
		InvitationTTL:        cfg.InvitationTokenTTL,
		EmailVerificationTTL: cfg.EmailVerificationTokenTTL,
		PasswordResetTTL:     cfg.PasswordResetTokenTTL,
	}, token.WithLogger(quietLogger()))
}

func newConnector(cfg *config.Config) (*providers.RedisConnector, error) {
	return providers.NewRedisConnector(providers.ConnectorConfig{
		URL:                cfg.RedisURL,
		ConnectTimeout:     time.Duration(cfg.RedisConnectTimeoutSeconds) * time.Second,
		MaxConnectAttempts: cfg.RedisMaxConnectAttempts,
		Backoff: backoff.Policy{
			Strategy: backoff.ParseStrategy(cfg.RedisBackoffPolicy),
			Base:     time.Duration(cfg.RedisBackoffBaseMillis) * time.Millisecond,
			Max:      time.Duration(cfg.RedisBackoffMaxMillis) * time.Millisecond,
		},
	}, quietLogger())
}

// quietLogger keeps library diagnostics off the terminal unless asked for.
func quietLogger() *slog.Logger {
	if os.Getenv("BUDGETAUTH_DEBUG") != "" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func promptSecret(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		var v string
		_, err := fmt.Fscanln(os.Stdin, &v)
		return v, err
	}
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

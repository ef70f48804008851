package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/osvaldoandrade/budgetauth/internal/repository"
	"github.com/osvaldoandrade/budgetauth/internal/services"
)

// revoker is satisfied by the admin HTTP API and by a direct store connection.
type revoker interface {
	Revoke(ctx context.Context, raw, reason string) (bool, error)
}

type httpRevoker struct{ c *client }

func (h httpRevoker) Revoke(_ context.Context, raw, reason string) (bool, error) {
	status, body, err := h.c.request(http.MethodPost, "/v1/admin/revocations", "", map[string]string{"token": raw, "reason": reason})
	if err != nil {
		return false, err
	}
	if status >= 300 {
		return false, fmt.Errorf("error (%d): %s", status, strings.TrimSpace(string(body)))
	}
	var out struct {
		Revoked bool `json:"revoked"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return false, err
	}
	return out.Revoked, nil
}

// directRevocations opens the configured store and returns the revocation
// service on top of it plus a closer.
func directRevocations(g *globals) (services.RevocationService, func(), error) {
	cfg, err := serverConfig(g)
	if err != nil {
		return nil, nil, err
	}
	if cfg.UsesMemoryStore() {
		return nil, nil, errors.New("--direct needs a shared redis store, config uses memory://")
	}
	codec, err := newCodec(cfg)
	if err != nil {
		return nil, nil, err
	}
	conn, err := newConnector(cfg)
	if err != nil {
		return nil, nil, err
	}
	svc := services.NewRevocationService(repository.NewRedisKV(conn), codec, quietLogger(), nil,
		time.Duration(cfg.RevocationCheckTimeoutMillis)*time.Millisecond)
	return svc, func() { _ = conn.Close() }, nil
}

func revokeCmd(g *globals, ui *ui) *cobra.Command {
	var (
		reason string
		file   string
		direct bool
	)
	cmd := &cobra.Command{
		Use:   "revoke [token]",
		Short: "Revoke one token or a file of tokens",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tokens []string
			switch {
			case file != "":
				var err error
				tokens, err = readTokens(file)
				if err != nil {
					return err
				}
			case len(args) == 1:
				tokens = []string{strings.TrimSpace(args[0])}
			default:
				return errors.New("token argument or --file is required")
			}
			if len(tokens) == 0 {
				fmt.Println(ui.warn("no tokens to revoke"))
				return nil
			}

			var r revoker
			if direct {
				svc, closeFn, err := directRevocations(g)
				if err != nil {
					return err
				}
				defer closeFn()
				r = svc
			} else {
				r = httpRevoker{c: newClient(g.baseURL, g.adminKey)}
			}

			ctx := cmd.Context()
			if len(tokens) == 1 {
				ok, err := r.Revoke(ctx, tokens[0], reason)
				if err != nil {
					return err
				}
				if ok {
					fmt.Println(ui.ok("revoked"), maskToken(tokens[0]))
				} else {
					fmt.Println(ui.warn("skipped"), maskToken(tokens[0]), ui.dim("(already expired or undecodable)"))
				}
				return nil
			}

			res := revokeAll(ctx, r, tokens, reason, cmd.ErrOrStderr())
			fmt.Printf("%s %d revoked, %d skipped, %d failed\n", ui.title("done"), res.revoked, res.skipped, len(res.failed))
			for _, f := range res.failed {
				fmt.Println(ui.err("  failed"), f)
			}
			if len(res.failed) > 0 {
				return fmt.Errorf("%d revocations failed", len(res.failed))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", services.ReasonAdmin, "Revocation reason")
	cmd.Flags().StringVar(&file, "file", "", "File with one token per line (- for stdin)")
	cmd.Flags().BoolVar(&direct, "direct", false, "Write to the revocation store instead of the admin API")
	return cmd
}

type bulkResult struct {
	revoked int
	skipped int
	failed  []string
}

func revokeAll(ctx context.Context, r revoker, tokens []string, reason string, out io.Writer) bulkResult {
	bar := progressbar.NewOptions(len(tokens),
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("revoking"),
		progressbar.OptionSetWidth(18),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	var res bulkResult
	for _, t := range tokens {
		ok, err := r.Revoke(ctx, t, reason)
		switch {
		case err != nil:
			res.failed = append(res.failed, fmt.Sprintf("%s: %v", maskToken(t), err))
		case ok:
			res.revoked++
		default:
			res.skipped++
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	return res
}

// readTokens reads one token per line. Blank lines and # comments are ignored.
func readTokens(path string) ([]string, error) {
	var in io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		in = f
	}
	var out []string
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

func revocationsCmd(g *globals, ui *ui) *cobra.Command {
	var direct bool
	cmd := &cobra.Command{
		Use:   "revocations",
		Short: "Inspect the revocation store",
	}
	cmd.PersistentFlags().BoolVar(&direct, "direct", false, "Read the revocation store instead of the admin API")

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Count revoked tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			if direct {
				svc, closeFn, err := directRevocations(g)
				if err != nil {
					return err
				}
				defer closeFn()
				return printValue(svc.Stats(cmd.Context()))
			}
			out, err := newClient(g.baseURL, g.adminKey).call("reading stats", http.MethodGet, "/v1/admin/revocations/stats", "", nil)
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "info <token>",
		Short: "Show why and when a token was revoked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strings.TrimSpace(args[0])
			if direct {
				svc, closeFn, err := directRevocations(g)
				if err != nil {
					return err
				}
				defer closeFn()
				entry, err := svc.Info(cmd.Context(), raw)
				if err != nil {
					return err
				}
				if entry == nil {
					fmt.Println(ui.warn("token is not revoked"))
					return nil
				}
				return printValue(entry)
			}
			out, err := newClient(g.baseURL, g.adminKey).call("looking up token", http.MethodPost, "/v1/admin/revocations/info", "", map[string]string{"token": raw})
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Delete revocation entries whose TTL has lapsed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if direct {
				svc, closeFn, err := directRevocations(g)
				if err != nil {
					return err
				}
				defer closeFn()
				n, err := svc.CleanupExpired(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Println(ui.ok("cleanup"), n, "deleted")
				return nil
			}
			out, err := newClient(g.baseURL, g.adminKey).call("cleaning up", http.MethodPost, "/v1/admin/revocations/cleanup", "", nil)
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	})
	return cmd
}

func printValue(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

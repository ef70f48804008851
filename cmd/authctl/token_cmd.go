package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/osvaldoandrade/budgetauth/pkg/token"
)

func tokenCmd(g *globals, ui *ui) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue, verify and decode tokens locally",
	}
	cmd.AddCommand(tokenIssueCmd(g, ui))
	cmd.AddCommand(tokenVerifyCmd(g, ui))
	cmd.AddCommand(tokenDecodeCmd(ui))
	return cmd
}

func tokenIssueCmd(g *globals, ui *ui) *cobra.Command {
	var (
		purpose string
		sub     token.Subject
		meta    []string
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign a token with the configured secrets",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := token.ParsePurpose(purpose)
			if err != nil {
				return err
			}
			md, err := parseMetadata(meta)
			if err != nil {
				return err
			}
			sub.Metadata = md
			cfg, err := serverConfig(g)
			if err != nil {
				return err
			}
			codec, err := newCodec(cfg)
			if err != nil {
				return err
			}
			raw, exp, err := codec.Issue(p, sub)
			if err != nil {
				return err
			}
			fmt.Println(raw)
			fmt.Fprintln(cmd.ErrOrStderr(), ui.dim(fmt.Sprintf("%s token, expires %s", p, exp.Format(time.RFC3339))))
			return nil
		},
	}
	cmd.Flags().StringVar(&purpose, "purpose", "access", "access|refresh|invitation|email-verification|password-reset")
	cmd.Flags().StringVar(&sub.UserID, "user", "", "userId claim")
	cmd.Flags().StringVar(&sub.Email, "email", "", "email claim")
	cmd.Flags().StringVar(&sub.FamilyID, "family", "", "familyId claim")
	cmd.Flags().StringVar(&sub.Role, "role", "", "role claim")
	cmd.Flags().StringArrayVar(&meta, "meta", nil, "metadata entry key=value (repeatable)")
	return cmd
}

func tokenVerifyCmd(g *globals, ui *ui) *cobra.Command {
	var purpose string
	cmd := &cobra.Command{
		Use:   "verify <token>",
		Short: "Check signature, audience and expiry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := token.ParsePurpose(purpose)
			if err != nil {
				return err
			}
			cfg, err := serverConfig(g)
			if err != nil {
				return err
			}
			codec, err := newCodec(cfg)
			if err != nil {
				return err
			}
			claims, err := codec.Verify(p, strings.TrimSpace(args[0]))
			if err != nil {
				var ve *token.VerifyError
				if errors.As(err, &ve) {
					return fmt.Errorf("invalid %s token: %s", p, ve.Detail())
				}
				return err
			}
			fmt.Println(ui.ok("valid"), ui.dim(fmt.Sprintf("%s, %s left", p, codec.RemainingTTL(args[0]).Round(time.Second))))
			return printClaims(claims)
		},
	}
	cmd.Flags().StringVar(&purpose, "purpose", "access", "expected token purpose")
	return cmd
}

func tokenDecodeCmd(ui *ui) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <token>",
		Short: "Print claims without checking the signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Decoding needs no secrets; a throwaway codec is enough.
			codec, err := token.NewCodec(token.Config{AccessSecret: "-", RefreshSecret: "-"}, token.WithLogger(quietLogger()))
			if err != nil {
				return err
			}
			raw := strings.TrimSpace(args[0])
			claims := codec.DecodeUnsafe(raw)
			if claims == nil {
				return errors.New("not a decodable token")
			}
			if codec.IsExpired(raw) {
				fmt.Println(ui.warn("expired"))
			} else {
				fmt.Println(ui.info("unverified"), ui.dim(fmt.Sprintf("%s left", codec.RemainingTTL(raw).Round(time.Second))))
			}
			return printClaims(claims)
		},
	}
}

func printClaims(c *token.Claims) error {
	out, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func parseMetadata(entries []string) (map[string]any, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	md := make(map[string]any, len(entries))
	for _, e := range entries {
		k, v, ok := strings.Cut(e, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --meta %q, want key=value", e)
		}
		md[strings.TrimSpace(k)] = v
	}
	return md, nil
}

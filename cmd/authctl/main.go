package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type ui struct {
	title func(a ...any) string
	ok    func(a ...any) string
	info  func(a ...any) string
	warn  func(a ...any) string
	err   func(a ...any) string
	dim   func(a ...any) string
}

func newUI() *ui {
	return &ui{
		title: color.New(color.FgHiCyan, color.Bold).SprintFunc(),
		ok:    color.New(color.FgGreen, color.Bold).SprintFunc(),
		info:  color.New(color.FgCyan).SprintFunc(),
		warn:  color.New(color.FgYellow).SprintFunc(),
		err:   color.New(color.FgRed, color.Bold).SprintFunc(),
		dim:   color.New(color.FgHiBlack).SprintFunc(),
	}
}

// globals are the root flags shared by every subcommand.
type globals struct {
	baseURL     string
	adminKey    string
	serverCfg   string
	profileName string
}

func main() {
	g := &globals{
		baseURL:     getenv("BUDGETAUTH_BASE_URL", "http://localhost:8080"),
		adminKey:    getenv("BUDGETAUTH_ADMIN_KEY", ""),
		serverCfg:   getenv("BUDGETAUTH_CONFIG_PATH", ""),
		profileName: getenv("BUDGETAUTH_PROFILE", ""),
	}
	ui := newUI()

	root := &cobra.Command{
		Use:   "authctl",
		Short: "budgetauth CLI",
		Long:  "authctl issues, inspects and revokes family-budget tokens.",
	}
	root.SetHelpTemplate(helpTemplate(ui))
	root.SilenceUsage = true

	root.PersistentFlags().StringVar(&g.baseURL, "base-url", g.baseURL, "Base URL of the auth service")
	root.PersistentFlags().StringVar(&g.adminKey, "admin-key", g.adminKey, "Admin API key (X-Admin-Key)")
	root.PersistentFlags().StringVar(&g.serverCfg, "config", g.serverCfg, "Server config file for local commands")
	root.PersistentFlags().StringVar(&g.profileName, "profile", g.profileName, "CLI profile")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, _, _ := loadProfiles()
		prof := cfg.Profiles[resolveProfileName(g.profileName, cfg)]
		flags := cmd.Flags()
		if !flags.Changed("base-url") && os.Getenv("BUDGETAUTH_BASE_URL") == "" && prof.BaseURL != "" {
			g.baseURL = prof.BaseURL
		}
		if !flags.Changed("admin-key") && os.Getenv("BUDGETAUTH_ADMIN_KEY") == "" && prof.AdminKey != "" {
			g.adminKey = prof.AdminKey
		}
		return nil
	}

	root.AddCommand(loginCmd(g, ui))
	root.AddCommand(meCmd(g, ui))
	root.AddCommand(logoutCmd(g, ui))
	root.AddCommand(tokenCmd(g, ui))
	root.AddCommand(revokeCmd(g, ui))
	root.AddCommand(revocationsCmd(g, ui))
	root.AddCommand(hashPasswordCmd(ui))
	root.AddCommand(pingCmd(g, ui))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.err("[ERROR]"), err.Error())
		os.Exit(1)
	}
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func helpTemplate(ui *ui) string {
	title := ui.title("authctl")
	return fmt.Sprintf(`%s: CLI for budgetauth

Usage:
  {{.UseLine}}

Commands:
{{range .Commands}}{{if (or .IsAvailableCommand .IsAdditionalHelpTopicCommand)}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

Flags:
  {{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

Global Flags:
  {{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

Config:
  %s

Examples:
  authctl login --email you@example.com
  authctl token issue --purpose access --user u1
  authctl token decode <token>
  authctl revoke --file leaked.txt --reason admin
  authctl revocations stats
  authctl ping

`, title, profilesPath())
}

func maskToken(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "<unset>"
	}
	if len(v) <= 8 {
		return "****"
	}
	return v[:4] + "..." + v[len(v)-4:]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

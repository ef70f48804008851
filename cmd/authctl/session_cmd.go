package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/osvaldoandrade/budgetauth/internal/services"
)

func loginCmd(g *globals, ui *ui) *cobra.Command {
	var email, passwd string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the token pair in a profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			email = strings.TrimSpace(email)
			if email == "" {
				return errors.New("--email is required")
			}
			if passwd == "" {
				var err error
				passwd, err = promptSecret("Password: ")
				if err != nil {
					return err
				}
			}
			out, err := newClient(g.baseURL, "").call("logging in", http.MethodPost, "/v1/auth/login", "",
				map[string]string{"email": email, "password": passwd})
			if err != nil {
				return err
			}
			var pair services.TokenPair
			if err := json.Unmarshal(out, &pair); err != nil {
				return err
			}

			cfg, path, err := loadProfiles()
			if err != nil {
				return err
			}
			name := strings.TrimSpace(g.profileName)
			if name == "" {
				name = profileFromEmail(email)
			}
			prof := cfg.Profiles[name]
			prof.BaseURL = g.baseURL
			prof.Email = email
			prof.AccessToken = pair.AccessToken
			prof.RefreshToken = pair.RefreshToken
			cfg.Profiles[name] = prof
			cfg.CurrentProfile = name
			if err := saveProfiles(cfg, path); err != nil {
				return err
			}
			fmt.Println(ui.ok("logged in"), email, ui.dim("profile "+name))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&passwd, "password", "", "Password (prompted when omitted)")
	return cmd
}

func currentProfile(g *globals) (cliConfig, string, string, profile, error) {
	cfg, path, err := loadProfiles()
	if err != nil {
		return cfg, path, "", profile{}, err
	}
	name := resolveProfileName(g.profileName, cfg)
	prof, ok := cfg.Profiles[name]
	if !ok || prof.AccessToken == "" {
		return cfg, path, name, prof, fmt.Errorf("profile %q has no session, run authctl login", name)
	}
	return cfg, path, name, prof, nil
}

func meCmd(g *globals, ui *ui) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the authorization context of the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, _, prof, err := currentProfile(g)
			if err != nil {
				return err
			}
			out, err := newClient(firstNonEmpty(prof.BaseURL, g.baseURL), "").call("fetching context", http.MethodGet, "/v1/auth/me", prof.AccessToken, nil)
			if err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
}

func logoutCmd(g *globals, ui *ui) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the stored session and forget it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, name, prof, err := currentProfile(g)
			if err != nil {
				return err
			}
			_, err = newClient(firstNonEmpty(prof.BaseURL, g.baseURL), "").call("logging out", http.MethodPost, "/v1/auth/logout", prof.AccessToken,
				map[string]string{"refreshToken": prof.RefreshToken})
			if err != nil {
				return err
			}
			prof.AccessToken = ""
			prof.RefreshToken = ""
			cfg.Profiles[name] = prof
			if err := saveProfiles(cfg, path); err != nil {
				return err
			}
			fmt.Println(ui.ok("logged out"), ui.dim("profile "+name))
			return nil
		},
	}
}

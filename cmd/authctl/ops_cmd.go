package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/osvaldoandrade/budgetauth/internal/password"
)

func hashPasswordCmd(ui *ui) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash for a directory record",
		RunE: func(cmd *cobra.Command, args []string) error {
			plain, err := promptSecret("Password: ")
			if err != nil {
				return err
			}
			if plain == "" {
				return errors.New("empty password")
			}
			confirm, err := promptSecret("Repeat password: ")
			if err != nil {
				return err
			}
			if confirm != plain {
				return errors.New("passwords do not match")
			}
			hash, err := password.Hash(plain)
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		},
	}
}

func pingCmd(g *globals, ui *ui) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Connect to the revocation store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := serverConfig(g)
			if err != nil {
				return err
			}
			if cfg.UsesMemoryStore() {
				fmt.Println(ui.warn("memory://"), ui.dim("in-process store, nothing to ping"))
				return nil
			}
			conn, err := newConnector(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
			spin.Suffix = " connecting to " + maskURL(cfg.RedisURL)
			spin.Start()
			start := time.Now()
			err = conn.Ping(ctx)
			spin.Stop()
			if err != nil {
				return fmt.Errorf("ping failed after %d attempts: %w", conn.ConnectAttempts(), err)
			}
			fmt.Println(ui.ok("PONG"), ui.dim(fmt.Sprintf("%s, %d attempts", time.Since(start).Round(time.Millisecond), conn.ConnectAttempts())))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Give up after this long")
	return cmd
}

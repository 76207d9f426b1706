package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autovault/internal/auth"
	"autovault/internal/seed"
	"autovault/internal/services"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema (sqlite migrations, mongo indexes)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			store, err := openStore(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			log.Info("schema is up to date", zap.String("driver", cfg.Database.Driver))
			return store.Close()
		},
	}
}

func seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load catalog images from a YAML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			catalog, err := seed.Parse(f)
			if err != nil {
				return err
			}

			store, err := openStore(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			n, err := seed.Load(cmd.Context(), services.NewCatalogService(store, nil, cfg.Database.StoreTimeout, log), catalog, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d images\n", n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "catalog YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func promoteCmd() *cobra.Command {
	var (
		email  string
		revoke bool
	)
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Grant (or revoke) the admin flag on an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				return errors.New("--email is required")
			}
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			store, err := openStore(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			// Tokens are never issued here, so the signing secret is irrelevant.
			accounts := services.NewAccountService(store, store, auth.NewTokenIssuer("unused", time.Minute), cfg.Database.StoreTimeout, log)
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := accounts.SetAdmin(ctx, email, !revoke); err != nil {
				if errors.Is(err, services.ErrNotFound) {
					return fmt.Errorf("no account with email %s", email)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s admin=%v\n", email, !revoke)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().BoolVar(&revoke, "revoke", false, "remove the admin flag instead")
	return cmd
}

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/baharkarakas/bookswap-backend/internal/config"
	"github.com/baharkarakas/bookswap-backend/internal/logger"
	"github.com/baharkarakas/bookswap-backend/internal/models"
	"github.com/baharkarakas/bookswap-backend/internal/services"
	"github.com/baharkarakas/bookswap-backend/internal/storage"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bookswapctl",
		Short:         "Operator commands for the book exchange backend",
		SilenceUsage: true,
	}
	root.AddCommand(newMigrateCmd(), newPromoteCmd(), newCreateAdminCmd())
	return root
}

// withStorage loads config from the environment and opens storage for one command.
func withStorage(ctx context.Context, migrate bool, fn func(st *storage.Storage) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Env)
	st, err := storage.Open(ctx, cfg, migrate, log)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStorage(cmd.Context(), true, func(*storage.Storage) error {
				fmt.Fprintln(cmd.OutOrStdout(), "migrations up to date")
				return nil
			})
		},
	}
}

func newPromoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote <username>",
		Short: "Grant the admin role to an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStorage(cmd.Context(), false, func(st *storage.Storage) error {
				u, err := services.NewUserService(st.Repos.Users, nil).Promote(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("promote %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) is now %s\n", u.Username, u.ID, u.Role)
				return nil
			})
		},
	}
}

func newCreateAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-admin <username>",
		Short: "Register a new account with the admin role",
		Long:  "Register a new account with the admin role. The password is read from BOOKSWAP_PASSWORD or prompted for.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := os.Getenv("BOOKSWAP_PASSWORD")
			if password == "" {
				p, err := readPassword(cmd, "Password: ")
				if err != nil {
					return err
				}
				password = p
			}
			return withStorage(cmd.Context(), false, func(st *storage.Storage) error {
				us := services.NewUserService(st.Repos.Users, nil)
				u, err := us.Register(cmd.Context(), args[0], password)
				if err != nil {
					return err
				}
				if u, err = us.SetRole(cmd.Context(), u.ID, models.RoleAdmin); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", u.Username, u.ID)
				return nil
			})
		},
	}
}

// readPassword reads a password without echo.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

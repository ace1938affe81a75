package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/deskworks/dashboard/internal/infrastructure/config"
	"github.com/deskworks/dashboard/internal/infrastructure/identity"
	"github.com/deskworks/dashboard/pkg/logger"
)

var devIdentityCmd = &cobra.Command{
	Use:   "dev-identity",
	Short: "Run a local stand-in for the identity service",
	Long: `Serves /login, /whoami, /user/{username}, /update-password and /logout
with seeded accounts for local development. Accounts come from
DEV_IDENTITY_USERS (a JSON file) or a built-in set with one user per role.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := config.LoadDevIdentity(ctx)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.Env == "development", Service: "dev-identity", Env: cfg.Env})

		users := identity.DefaultDevUsers()
		if cfg.UsersFile != "" {
			if users, err = identity.LoadDevUsers(cfg.UsersFile); err != nil {
				return err
			}
		}

		dev, err := identity.NewDevServer(users, bcrypt.DefaultCost, logger.ForComponent("dev-identity"))
		if err != nil {
			return err
		}
		e := dev.Handler()

		go func() {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = e.Shutdown(sctx)
		}()

		log.Info().Str("addr", ":"+cfg.Port).Int("users", len(users)).Msg("dev identity service listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

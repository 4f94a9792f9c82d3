package main

import (
	"fmt"
	"os"
	"time"

	"inpatient-capacity-backend/internal/config"
	"inpatient-capacity-backend/internal/database"
	"inpatient-capacity-backend/internal/logging"
	"inpatient-capacity-backend/internal/middleware"
	"inpatient-capacity-backend/pkg/utils"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const serviceName = "inpatient-capacity-backend"

func main() {
	rootCmd := &cobra.Command{
		Use:   "inpatient-server",
		Short: "Ward, bed and admission capacity API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			logging.Init(serviceName, cfg.Log.Level, cfg.Server.GinMode)
			return runServer(cfg)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			logging.Init(serviceName, cfg.Log.Level, cfg.Server.GinMode)

			db, err := database.Connect(cfg)
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			log.Info().Msg("Database migration completed")
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		userID uint
		role   string
		expiry time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a staff access token signed with the shared secret (local use)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == 0 {
				return fmt.Errorf("--user is required")
			}
			switch role {
			case middleware.RoleAdmin, middleware.RoleBedManager, middleware.RoleClinician:
			default:
				return fmt.Errorf("unknown role %q", role)
			}

			cfg := config.LoadConfig()
			if expiry == 0 {
				expiry = cfg.JWT.AccessTokenExpiry
			}
			utils.InitJWT(cfg.JWT.AccessSecret, expiry, cfg.JWT.Issuer)

			token, err := utils.GenerateAccessToken(userID, role)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().UintVar(&userID, "user", 0, "staff user id")
	cmd.Flags().StringVar(&role, "role", middleware.RoleClinician, "admin, bed_manager or clinician")
	cmd.Flags().DurationVar(&expiry, "expiry", 0, "token lifetime (defaults to ACCESS_TOKEN_EXPIRY)")
	return cmd
}

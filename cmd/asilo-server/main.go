package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/asilo/asilo/internal/config"
	"github.com/asilo/asilo/internal/domain/staff"
	"github.com/asilo/asilo/internal/platform/db"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "asilo-server",
		Short:        "Residential care records API",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(staffCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(dev bool) zerolog.Logger {
	if dev {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrate, _ := cmd.Flags().GetBool("migrate")
			return runServer(migrate)
		},
	}
	cmd.Flags().Bool("migrate", false, "Apply pending migrations before serving")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("Migrations applied.")
			return nil
		},
	})

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := db.RollbackMigrations(cfg.DatabaseURL, steps); err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			fmt.Printf("Rolled back %d migration(s).\n", steps)
			return nil
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migrations to roll back")
	cmd.AddCommand(downCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			st, err := db.Status(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("%-10s %-10s %s\n", "VERSION", "DIRTY", "AVAILABLE")
			fmt.Printf("%-10d %-10t %d\n", st.Version, st.Dirty, st.Available)
			return nil
		},
	})

	return cmd
}

func staffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Manage staff accounts",
	}

	createAdmin := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an ADMIN account",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("nombre")
			email, _ := cmd.Flags().GetString("correo")
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				password = os.Getenv("ASILO_ADMIN_PASSWORD")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := staff.NewService(staff.NewRepoPG(pool), nil, nil)
			a, err := svc.CreateAdmin(ctx, name, email, password)
			if err != nil {
				return err
			}
			fmt.Printf("Created ADMIN %s (%s)\n", a.Email, a.ID)
			return nil
		},
	}
	createAdmin.Flags().String("nombre", "", "Display name")
	createAdmin.Flags().String("correo", "", "Login email")
	createAdmin.Flags().String("password", "", "Password (defaults to $ASILO_ADMIN_PASSWORD)")
	_ = createAdmin.MarkFlagRequired("nombre")
	_ = createAdmin.MarkFlagRequired("correo")

	cmd.AddCommand(createAdmin)
	return cmd
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/kis-labs/webbuilder/cmd/wbctl/cli"
	"github.com/kis-labs/webbuilder/internal/app"
	"github.com/kis-labs/webbuilder/internal/password"
	"github.com/kis-labs/webbuilder/internal/platform/db"
	"github.com/kis-labs/webbuilder/internal/principal"
	"github.com/kis-labs/webbuilder/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:           "wbctl",
		Short:         "Operator tool for the web builder backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(migrateCmd(), userCmd(), jobsCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "wbctl:", err)
		os.Exit(1)
	}
}

func loadConfig() (*app.Config, error) {
	return app.ReadConfig()
}

func withPool(ctx context.Context, fn func(db.Handle) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pool, err := db.New(ctx, cfg.DSN(), cfg.PGMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(pool)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), func(h db.Handle) error {
				if err := db.Migrate(cmd.Context(), h); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
				return nil
			})
		},
	}
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account with the given role",
		RunE: func(cmd *cobra.Command, args []string) error {
			login, _ := cmd.Flags().GetString("login")
			pw, _ := cmd.Flags().GetString("password")
			role, _ := cmd.Flags().GetString("role")
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return withPool(cmd.Context(), func(h db.Handle) error {
				p, err := cli.CreateAccount(cmd.Context(), principal.NewRepository(h), password.NewHasher(cfg.BcryptCost), login, pw, role)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s (id=%d, role=%s)\n", p.LoginName, p.ID, p.Role)
				return nil
			})
		},
	}
	createCmd.Flags().StringP("login", "l", "", "Login name (required)")
	createCmd.Flags().StringP("password", "p", "", "Password (required)")
	createCmd.Flags().StringP("role", "r", string(principal.RoleUser), "Role: USER or ADMIN")
	_ = createCmd.MarkFlagRequired("login")
	_ = createCmd.MarkFlagRequired("password")

	cmd.AddCommand(createCmd)
	return cmd
}

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue depth",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			inspector := asynq.NewInspector(cfg.Redis().AsynqOpt())
			defer inspector.Close()

			stats, err := cli.NewJobsCLI(nil, inspector).InspectQueues()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tARCHIVED")
			for _, s := range stats {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n", s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived)
			}
			return w.Flush()
		},
	}

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Enqueue an action log purge now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			retention, _ := cmd.Flags().GetDuration("retention")
			if retention == 0 {
				retention = cfg.ActionLogRetention
			}
			client := jobs.NewClient(cfg.Redis().AsynqOpt())
			defer client.Close()

			info, err := cli.NewJobsCLI(client, nil).TriggerPurge(cmd.Context(), retention)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s on %s (id=%s)\n", info.Type, info.Queue, info.ID)
			return nil
		},
	}
	purgeCmd.Flags().Duration("retention", 0, "Delete entries older than this (defaults to ACTION_LOG_RETENTION)")

	cmd.AddCommand(statsCmd, purgeCmd)
	return cmd
}


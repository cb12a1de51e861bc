package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"xprexx/internal/bootstrap"
	"xprexx/internal/config"
	"xprexx/internal/domain/model"
	"xprexx/internal/infra/db"
	"xprexx/internal/logger"
	"xprexx/internal/repository"
	"xprexx/internal/usecase"

	"github.com/spf13/cobra"
)

var verbose bool

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "xprexxctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "xprexxctl",
		Short:        "XPREXX operator CLI",
		Long:         `xprexxctl runs database migrations, seeds sample shipments, prints tracking timelines and exports shipment reports.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at info level")
	cmd.AddCommand(
		newMigrateCmd(),
		newSeedCmd(),
		newTrackCmd(),
		newExportCmd(),
		newCreateAdminCmd(),
	)
	return cmd
}

// 設定を読んでAppを組み立てる。closeは呼び出し側で
func loadApp(ctx context.Context) (*bootstrap.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if !verbose {
		cfg.LogLevel = "warn"
	}
	log, err := logger.New(cfg)
	if err != nil {
		return nil, err
	}
	return bootstrap.New(ctx, cfg, log)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update all tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := db.Migrate(app.DB); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrated")
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the sample shipments (XPR123456789, XPR987654321) if absent",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			n, err := bootstrap.SeedSampleData(cmd.Context(), app.Tx, time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d shipment(s)\n", n)
			return nil
		},
	}
}

func newTrackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "track <tracking-number>",
		Short: "Print a shipment timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			out, found, err := app.Tracking.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("%s", usecase.MsgTrackingNotFound)
			}
			return printTimeline(cmd.OutOrStdout(), out)
		},
	}
}

func newExportCmd() *cobra.Command {
	var (
		outPath string
		upload  bool
		status  string
		q       string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export shipments as CSV (to a file, stdout, or object storage)",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			// CLIは管理者権限で動く
			actor := model.SystemActor()
			f := repository.ShipmentListFilter{Q: q, Status: status}

			if upload {
				res, err := app.Admin.UploadExport(cmd.Context(), actor, f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d row(s) to %s\n%s\n", res.Rows, res.Key, res.URL)
				return nil
			}

			w := cmd.OutOrStdout()
			if outPath != "" {
				file, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer file.Close()
				w = file
			}

			n, err := app.Admin.ExportCSV(cmd.Context(), actor, f, w)
			if err != nil {
				return err
			}
			if outPath != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d row(s) to %s\n", n, outPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write CSV to this file instead of stdout")
	cmd.Flags().BoolVar(&upload, "upload", false, "Upload to S3/MinIO and print a presigned URL")
	cmd.Flags().StringVar(&status, "status", "", "Only shipments with this status")
	cmd.Flags().StringVar(&q, "q", "", "Search tracking number, route or party names")
	return cmd
}

func newCreateAdminCmd() *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an ADMIN account",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			u, err := app.Auth.CreateAdmin(cmd.Context(), usecase.AuthRegisterRequest{
				Email:    email,
				Password: password,
				Name:     name,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin id=%d email=%s\n", u.ID, u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Admin email")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (min 8 chars)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func printTimeline(w io.Writer, out usecase.TrackingOutput) error {
	s := out.Shipment
	fmt.Fprintf(w, "%s  %s -> %s\n", s.TrackingNumber, s.Origin, s.Destination)
	fmt.Fprintf(w, "status: %s (%s)", s.Status, s.StatusCategory)
	if s.IsPaused {
		fmt.Fprint(w, " [paused]")
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tTIME\tEVENT\tCATEGORY\tLOCATION\tDESCRIPTION")
	for _, e := range out.Timeline {
		marker := ""
		if e.IsCurrent {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			marker,
			e.CreatedAt.Format(time.RFC3339),
			e.EventType,
			e.Category,
			deref(e.Location),
			deref(e.Description),
		)
	}
	return tw.Flush()
}

func deref(p *string) string {
	if p == nil {
		return "-"
	}
	return *p
}

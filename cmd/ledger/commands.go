package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/money-ledger/api"
	"github.com/warp/money-ledger/config"
	"github.com/warp/money-ledger/ledger"
	"github.com/warp/money-ledger/store/sqlite"
)

var (
	configPath string
	dbPath     string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ledger",
		Short:         "Personal money ledger with standing monthly transfers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ./ledger.yaml)")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path, \":memory:\" for in-memory")

	root.AddCommand(newServeCmd(), newExportCmd(), newImportCmd(), newAccountsCmd(), newMandatesCmd())
	return root
}

// loadConfig reads the config file and applies persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("db") {
		cfg.Database.Path = dbPath
	}
	return cfg, nil
}

// session is an open store plus a hydrated ledger.
type session struct {
	store  *sqlite.Store
	ledger *ledger.Ledger
}

func openSession(ctx context.Context, cfg *config.Config) (*session, error) {
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	l := ledger.New(store, ledger.WithMirrorOptions(ledger.MirrorOptions{
		QueueSize:    cfg.Persistence.QueueSize,
		WriteTimeout: cfg.Persistence.WriteTimeout,
	}))
	if err := l.Load(ctx); err != nil {
		l.Close()
		store.Close()
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	return &session{store: store, ledger: l}, nil
}

// close drains pending writes before closing the database.
func (s *session) close() {
	s.ledger.Close()
	if err := s.store.Close(); err != nil {
		log.Printf("[Ledger] Close database: %v", err)
	}
}

// =============================================================================
// SERVE
// =============================================================================

func newServeCmd() *cobra.Command {
	var (
		port int
		addr string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the mandate scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Address = addr
			}
			return serve(cfg)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "HTTP server port")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address")
	return cmd
}

func serve(cfg *config.Config) error {
	s, err := openSession(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer s.close()

	scheduler := api.NewMandateScheduler(s.ledger)
	scheduler.Enabled = cfg.Scheduler.Enabled
	scheduler.CheckInterval = cfg.Scheduler.Interval
	scheduler.Start()
	defer scheduler.Stop()

	router := api.NewRouter(api.NewHandler(s.ledger), cfg.CORS.AllowedOrigins...)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("[Ledger] Server starting on %s (db %s)", cfg.Addr(), cfg.Database.Path)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	log.Println("[Ledger] Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("[Ledger] Server stopped")
	return nil
}

// =============================================================================
// BACKUP
// =============================================================================

func newExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a full snapshot as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.close()

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			snap := s.ledger.ExportSnapshot()
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if err := enc.Encode(snap); err != nil {
				return fmt.Errorf("write snapshot: %w", err)
			}
			if out != "" {
				success.Fprintf(cmd.ErrOrStderr(), "Exported %d accounts, %d transactions to %s\n",
					len(snap.Accounts), len(snap.Transactions), out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	return cmd
}

func newImportCmd() *cobra.Command {
	var in string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace ALL data with a snapshot (take a backup first)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			var snap ledger.Snapshot
			if err := json.Unmarshal(raw, &snap); err != nil {
				return fmt.Errorf("parse snapshot: %w", err)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.ledger.ImportData(cmd.Context(), snap); err != nil {
				var partial *ledger.ImportPartialFailureError
				if errors.As(err, &partial) {
					warning.Fprintf(cmd.ErrOrStderr(), "Store left partly cleared (%d collections); restore from a backup\n", len(partial.Cleared))
				}
				return err
			}
			success.Fprintf(cmd.OutOrStdout(), "Imported %d accounts, %d transactions, %d mandates\n",
				len(snap.Accounts), len(snap.Transactions), len(snap.Mandates))
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "", "Snapshot file")
	cmd.MarkFlagRequired("in")
	return cmd
}

// =============================================================================
// REPORTS
// =============================================================================

func newAccountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "Print account balances",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.close()

			printAccounts(cmd.OutOrStdout(), s.ledger.Accounts())
			return nil
		},
	}
}

func newMandatesCmd() *cobra.Command {
	var date string

	today := func() (time.Time, error) {
		if date == "" {
			return time.Now(), nil
		}
		return ledger.ParseISODate(date)
	}

	due := &cobra.Command{
		Use:   "due",
		Short: "List mandates due on --date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			day, err := today()
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.close()

			printMandates(cmd.OutOrStdout(), s.ledger, s.ledger.DueMandates(day), day)
			return nil
		},
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "Execute every mandate due on --date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			day, err := today()
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.close()

			txs, runErr := s.ledger.CheckAndRun(day)
			printTransactions(cmd.OutOrStdout(), s.ledger, txs)
			if err := s.ledger.Flush(cmd.Context()); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd := &cobra.Command{Use: "mandates", Short: "Inspect and execute standing monthly transfers"}
	cmd.PersistentFlags().StringVar(&date, "date", "", "Day to evaluate, YYYY-MM-DD (default today)")
	cmd.AddCommand(due, run)
	return cmd
}

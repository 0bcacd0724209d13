package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Monsieur0x/suppvoicebot/internal/config"
	"github.com/Monsieur0x/suppvoicebot/internal/engine"
	"github.com/Monsieur0x/suppvoicebot/internal/history"
	"github.com/Monsieur0x/suppvoicebot/internal/intent"
	"github.com/Monsieur0x/suppvoicebot/internal/pending"
	"github.com/Monsieur0x/suppvoicebot/internal/schedule"
	"github.com/Monsieur0x/suppvoicebot/internal/sheets"
	"github.com/Monsieur0x/suppvoicebot/internal/snapshot"
	"github.com/Monsieur0x/suppvoicebot/internal/speech"
	"github.com/Monsieur0x/suppvoicebot/internal/store"
)

var (
	version = "1.0.0"

	configPath string
	verbose    bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "shiftbot",
	Short: "Conversational front-end for the team's rotating work schedule",
	Long: `shiftbot keeps a rotating employee work schedule in Google Sheets and
lets the team change and query it in plain language, by text or voice.

It understands single and bulk shift changes, whole-month fills by the
2/2 rotation, undo, history, and detection of edits made directly in
the sheet.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runREPL(cmd.Context())
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the interactive schedule assistant",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runREPL(cmd.Context())
	},
}

var fillCmd = &cobra.Command{
	Use:   "fill <month> [year]",
	Short: "Fill a month sheet by the rotation without the confirmation dialog",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer app.close()

		month := args[0]
		if len(month) == 1 {
			month = "0" + month
		}
		year := time.Now().Year()
		if len(args) == 2 {
			if _, err := fmt.Sscanf(args[1], "%d", &year); err != nil {
				return fmt.Errorf("invalid year %q", args[1])
			}
		}

		fmt.Println(app.engine.FillMonth(ctx, month, year).Render())
		return nil
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Check for edits made directly in the sheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer app.close()

		fmt.Println(app.engine.CheckChanges(ctx).Render())
		return nil
	},
}

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Print who works today",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer app.close()

		fmt.Println(app.engine.DailySchedule(ctx, time.Now()).Render())
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the shiftbot version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("shiftbot %s\n", version)
	},
}

// app bundles the wired engine with everything that needs shutdown.
type app struct {
	engine  *engine.Engine
	watcher *config.RosterWatcher
	db      *store.Store
}

func (a *app) close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Spreadsheet.ID == "" {
		return nil, fmt.Errorf("spreadsheet id not configured (set SPREADSHEET_ID or spreadsheet.id)")
	}

	roster, err := config.LoadRoster(cfg.Storage.RosterPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}

	gateway := sheets.NewGateway(
		func(ctx context.Context) (sheets.Backend, error) {
			return sheets.NewGoogleBackend(ctx, cfg.Spreadsheet.ID, cfg.Spreadsheet.CredentialsPath)
		},
		cfg.Spreadsheet.MonthSheets,
		cfg.Spreadsheet.MonthNames,
		config.Duration(cfg.Limits.CacheTTL, time.Minute),
		logger,
		sheets.WithSessionCheckInterval(config.Duration(cfg.Limits.SessionCheckInterval, 5*time.Minute)),
	)

	ledger := history.Load(cfg.Storage.HistoryPath, cfg.Limits.MaxHistory, logger)
	differ := snapshot.Load(cfg.Storage.SnapshotPath, gateway, logger)
	pendingStore := pending.NewStore(config.Duration(cfg.Limits.PendingTTL, 2*time.Minute))

	db, err := store.New(cfg.Storage.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open local database: %w", err)
	}

	llm, err := intent.NewClient(ctx, intent.ProviderConfig{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		Timeout:  config.Duration(cfg.LLM.Timeout, time.Minute),
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	transcriber := speech.NewGroqClientWithConfig(speech.GroqConfig{
		APIKey:  cfg.Speech.APIKey,
		BaseURL: speech.DefaultGroqConfig("").BaseURL,
		Model:   cfg.Speech.Model,
		Timeout: config.Duration(cfg.Speech.Timeout, time.Minute),
	}, logger)

	var eng *engine.Engine
	classifier := intent.NewClassifier(llm, db,
		func() *schedule.Roster { return eng.Roster() }, logger)

	eng = engine.New(engine.Params{
		Gateway:          gateway,
		Ledger:           ledger,
		Differ:           differ,
		Pending:          pendingStore,
		Classifier:       classifier,
		Transcriber:      transcriber,
		Store:            db,
		Roster:           roster,
		MonthNames:       cfg.Spreadsheet.MonthNames,
		ConfirmThreshold: cfg.Limits.ConfirmThreshold,
		Log:              logger,
	})

	watcher, err := config.NewRosterWatcher(cfg.Storage.RosterPath, eng.SetRoster, logger)
	if err != nil {
		logger.Warn("roster watcher unavailable", zap.Error(err))
	} else if err := watcher.Start(ctx); err != nil {
		logger.Warn("roster watcher failed to start", zap.Error(err))
		watcher = nil
	}

	return &app{engine: eng, watcher: watcher, db: db}, nil
}

func runREPL(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	fmt.Println("shiftbot ready. Type a request, or \"quit\" to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		fmt.Println(app.engine.HandleText(ctx, 0, line).Render())
	}
	return scanner.Err()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(fillCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(todayCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

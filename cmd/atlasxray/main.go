package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jordanlewiz/atlas-xray-sub001/internal/config"
	"github.com/jordanlewiz/atlas-xray-sub001/internal/database"
	"github.com/jordanlewiz/atlas-xray-sub001/internal/discovery"
	"github.com/jordanlewiz/atlas-xray-sub001/internal/inference"
	"github.com/jordanlewiz/atlas-xray-sub001/internal/pipeline"
	"github.com/jordanlewiz/atlas-xray-sub001/internal/quality"
	"github.com/jordanlewiz/atlas-xray-sub001/internal/ratelimit"
	"github.com/jordanlewiz/atlas-xray-sub001/internal/remote"
	"github.com/jordanlewiz/atlas-xray-sub001/internal/server"
	"github.com/jordanlewiz/atlas-xray-sub001/internal/syncer"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "atlasxray",
	Short:   "Project update sync and quality scoring",
	Long:    "Atlas X-Ray syncs project status updates from a remote workspace into a local store and scores each update against quality criteria using a local or hosted model.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("atlasxray", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/atlasxray/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to set the workspace, API token env var, and model provider.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and scoring status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}
		metrics, err := db.GetQualityMetrics()
		if err != nil {
			return fmt.Errorf("getting metrics: %w", err)
		}

		fmt.Println("Projects:")
		fmt.Printf("  Tracked: %d\n", stats.TotalProjects)
		fmt.Printf("  With summary: %d\n", stats.ProjectsWithSummary)
		fmt.Println("\nUpdates:")
		fmt.Printf("  Stored: %d\n", stats.TotalUpdates)
		fmt.Printf("  Analyzed: %d\n", stats.AnalyzedUpdates)
		if metrics.AnalyzedUpdates > 0 {
			fmt.Printf("  Average score: %.0f\n", metrics.AverageScore)
			fmt.Println("\nBy level:")
			for _, level := range []string{quality.LevelExcellent, quality.LevelGood, quality.LevelFair, quality.LevelPoor} {
				if n := metrics.Distribution[level]; n > 0 {
					fmt.Printf("  %s: %d\n", level, n)
				}
			}
		}

		if at, err := db.GetLastScanAt(); err == nil && !at.IsZero() {
			fmt.Printf("\nLast scan: %s\n", at.Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

// --- scan command ---

var scanCmd = &cobra.Command{
	Use:   "scan [projectID...]",
	Short: "Sync and score the given projects once",
	Long:  "Runs one synchronous pipeline pass. Without arguments the configured project list is used, falling back to the last observed visible set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		orch, mgr := buildPipeline(db)
		defer orch.Close()
		defer mgr.Close()

		ids := args
		if len(ids) == 0 {
			ids = cfg.Discovery.Projects
		}

		ctx := cmd.Context()
		var report *pipeline.RunReport
		if len(ids) == 0 {
			report, err = orch.TriggerManualScan(ctx)
			if err != nil {
				return err
			}
		} else {
			report = orch.TriggerRun(ctx, ids)
		}

		if report == nil || len(report.ProjectIDs) == 0 {
			fmt.Println("Nothing to scan: no projects configured or previously seen.")
			return nil
		}

		fmt.Printf("Scanned %d project(s):\n", len(report.ProjectIDs))
		fmt.Printf("  Summaries fetched: %d\n", report.SummariesFetched)
		fmt.Printf("  Updates fetched: %d\n", report.UpdatesFetched)
		fmt.Printf("  Updates scored: %d\n", report.UpdatesScored)
		if !report.Success {
			return fmt.Errorf("scan did not complete; see log output")
		}
		return nil
	},
}

// --- watch command ---

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll for project activity and sync continuously",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		orch, mgr := buildPipeline(db)
		defer orch.Close()
		defer mgr.Close()

		src, desc, err := buildSource()
		if err != nil {
			return err
		}

		orch.Notifier().Subscribe(func(e pipeline.Event) {
			if e.Failed {
				log.Printf("Run over %d project(s) failed", len(e.ProjectIDs))
				return
			}
			log.Printf("Run complete: %d summaries, %d updates, %d scored",
				e.SummariesFetched, e.UpdatesFetched, e.UpdatesScored)
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Watching %s. Press Ctrl+C to stop.\n", desc)
		err = src.Run(ctx, orch.OnProjectsSeen)
		if err == context.Canceled {
			fmt.Println("\nStopped.")
			return nil
		}
		return err
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local dashboard server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		orch, mgr := buildPipeline(db)
		defer orch.Close()
		defer mgr.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, orch, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

// --- helpers ---

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(filepath.Join(dataDir, "atlasxray.db"))
}

// buildPipeline wires the remote client, rate limiter, fetch coordinator,
// model manager, and quality analyzer into an orchestrator.
func buildPipeline(db *database.DB) (*pipeline.Orchestrator, *inference.Manager) {
	client := remote.NewHTTPClient(cfg.Remote)
	limiter := ratelimit.New(cfg.Sync.RateLimit)
	coord := syncer.NewCoordinator(db, client, limiter, cfg.Sync.BatchSize, cfg.Staleness())

	backend := inference.CreateBackend(
		cfg.Inference.Provider,
		cfg.Inference.Model,
		cfg.Inference.OllamaURL,
		cfg.Inference.OpenAIModel,
		cfg.Inference.APIKeyEnv,
	)
	mgr := inference.NewManager(backend, inference.Options{
		InitRetries:       cfg.Inference.InitRetries,
		InitRetryDelay:    time.Duration(cfg.Inference.InitRetryDelaySecs) * time.Second,
		KeepaliveInterval: time.Duration(cfg.Inference.KeepaliveSeconds) * time.Second,
		IdleThreshold:     time.Duration(cfg.Inference.IdleThresholdMinutes) * time.Minute,
	})
	analyzer := quality.NewAnalyzer(mgr, cfg.CacheTTL())

	return pipeline.New(db, coord, analyzer, cfg.Debounce()), mgr
}

// buildSource picks the discovery source for watch mode: an activity
// feed when configured, otherwise the static project list.
func buildSource() (discovery.Source, string, error) {
	interval := time.Duration(cfg.Discovery.PollIntervalSeconds) * time.Second
	if cfg.Discovery.FeedURL != "" {
		return discovery.NewFeedSource(cfg.Discovery.FeedURL, interval),
			fmt.Sprintf("activity feed %s", cfg.Discovery.FeedURL), nil
	}
	if len(cfg.Discovery.Projects) > 0 {
		return discovery.NewStaticSource(cfg.Discovery.Projects, interval),
			fmt.Sprintf("%d configured project(s)", len(cfg.Discovery.Projects)), nil
	}
	return nil, "", fmt.Errorf("nothing to watch: set discovery.feed_url or discovery.projects in the config")
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mosli/threadloom/internal/config"
	"github.com/mosli/threadloom/internal/models"
	"github.com/mosli/threadloom/internal/server"
	"github.com/mosli/threadloom/internal/service"
	"github.com/mosli/threadloom/internal/store"
	"github.com/mosli/threadloom/pkg/logger"
)

var (
	configPath string
	version    = "0.1.0"
	gitCommit  = "unknown"
	buildTime  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "threadloom",
	Short: "Threadloom - Thread translation and republishing pipeline",
	Long:  `Threadloom captures X threads, translates them with OpenAI, and republishes the translations as reply chains.`,
	RunE:  runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Threadloom %s\n", version)
		fmt.Printf("Git commit: %s\n", gitCommit)
		fmt.Printf("Build time: %s\n", buildTime)
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and drive the job queue",
}

var jobsRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute all due jobs once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(func(rt *service.Runtime, log *zap.Logger) error {
			results, err := rt.Scheduler.RunPending(time.Now().UTC())
			if err != nil {
				return err
			}
			for _, result := range results {
				state := "ok"
				if !result.Success {
					state = "failed: " + result.Error
				}
				fmt.Printf("%s %s %s\n", result.Job.JobID, result.Job.Name, state)
			}
			fmt.Printf("Executed %d jobs\n", len(results))
			return nil
		})
	},
}

var (
	jobRunAt string
	jobLimit int
)

var jobsEnqueueScrapeCmd = &cobra.Command{
	Use:   "enqueue-scrape <handle>",
	Short: "Queue a scrape job for one handle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := models.JSONMap{"handle": args[0]}
		if jobLimit > 0 {
			payload["limit"] = jobLimit
		}
		return enqueueJob(service.HandlerScrape, payload)
	},
}

var jobsEnqueueTranslateCmd = &cobra.Command{
	Use:   "enqueue-translate <tweet_id>",
	Short: "Queue a translation job for one thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return enqueueJob(service.HandlerTranslate, models.JSONMap{"tweet_id": args[0]})
	},
}

var jobsEnqueuePublishCmd = &cobra.Command{
	Use:   "enqueue-publish <tweet_id>",
	Short: "Queue a publish job for one thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return enqueueJob(service.HandlerPublish, models.JSONMap{"tweet_id": args[0]})
	},
}

var (
	migrateTweetsPath       string
	migrateTranslationsPath string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Import legacy JSON stores into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrateTweetsPath == "" && migrateTranslationsPath == "" {
			return fmt.Errorf("nothing to migrate; pass --tweets and/or --translations")
		}
		return withRuntime(func(rt *service.Runtime, log *zap.Logger) error {
			if migrateTweetsPath != "" {
				count, err := store.ImportLegacyThreads(migrateTweetsPath, rt.Threads)
				if err != nil {
					return fmt.Errorf("import threads: %w", err)
				}
				fmt.Printf("Imported %d threads\n", count)
			}
			if migrateTranslationsPath != "" {
				count, err := store.ImportLegacyTranslations(migrateTranslationsPath, rt.Translations)
				if err != nil {
					return fmt.Errorf("import translations: %w", err)
				}
				fmt.Printf("Imported %d translations\n", count)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/server.yaml", "config file path")
	rootCmd.AddCommand(versionCmd)

	jobsEnqueueScrapeCmd.Flags().IntVar(&jobLimit, "limit", 0, "max threads to fetch")
	for _, cmd := range []*cobra.Command{jobsEnqueueScrapeCmd, jobsEnqueueTranslateCmd, jobsEnqueuePublishCmd} {
		cmd.Flags().StringVar(&jobRunAt, "run-at", "", "RFC3339 time the job becomes due (default now)")
	}
	jobsCmd.AddCommand(jobsRunCmd, jobsEnqueueScrapeCmd, jobsEnqueueTranslateCmd, jobsEnqueuePublishCmd)
	rootCmd.AddCommand(jobsCmd)

	migrateCmd.Flags().StringVar(&migrateTweetsPath, "tweets", "", "path to the legacy tweets JSON file")
	migrateCmd.Flags().StringVar(&migrateTranslationsPath, "translations", "", "path to the legacy translations JSON file")
	rootCmd.AddCommand(migrateCmd)
}

// withRuntime loads config, opens the database, and hands a composed runtime
// to fn. Used by the one-shot subcommands.
func withRuntime(fn func(*service.Runtime, *zap.Logger) error) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	appLogger, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Sync()

	db, err := store.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	rt, err := service.NewRuntime(cfg, db, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	return fn(rt, appLogger)
}

func enqueueJob(name string, payload models.JSONMap) error {
	var runAt *time.Time
	if jobRunAt != "" {
		parsed, err := time.Parse(time.RFC3339, jobRunAt)
		if err != nil {
			return fmt.Errorf("invalid --run-at value: %w", err)
		}
		runAt = &parsed
	}
	return withRuntime(func(rt *service.Runtime, log *zap.Logger) error {
		job, err := rt.Scheduler.Enqueue(name, payload, runAt)
		if err != nil {
			return err
		}
		fmt.Printf("Queued job %s (%s)\n", job.JobID, job.Name)
		return nil
	})
}

func runServer(*cobra.Command, []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	appLogger, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Threadloom server", zap.String("version", version))

	// Create server
	srv, err := server.NewServer(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Start server
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := srv.Start(ctx); err != nil {
			appLogger.Error("Server failed to start", zap.Error(err))
			cancel()
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		appLogger.Info("Shutting down server...")
	case <-ctx.Done():
		appLogger.Info("Server context cancelled")
	}

	// Graceful shutdown
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	appLogger.Info("Server exited")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// convoke turns natural-language requests into platform automation
// scripts and runs them under policy control.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"convoke/internal/channel"
	"convoke/internal/config"
	"convoke/internal/executor"
	"convoke/internal/generator"
	"convoke/internal/llm"
	"convoke/internal/logging"
	"convoke/internal/memory"
	"convoke/internal/monitor"
	"convoke/internal/persona"
	"convoke/internal/prompt"
	"convoke/internal/safety"
	"convoke/internal/server"
	"convoke/internal/store"
	"convoke/internal/template"
)

const version = "0.1.0"

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "convoke",
	Short: "Conversational automation server",
	Long: `convoke is a conversational automation server. It turns
natural-language requests into PowerShell, AppleScript, or Bash scripts
and runs them through a policy-checked execution scheduler.

Run "convoke serve" to start the HTTP API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("convoke %s (%s, %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "convoke.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logOpts := logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	}
	if verbose {
		logOpts.Level = "debug"
	}
	if err := logging.Init(logOpts); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logging.Sync()
	log := logging.Named("main")
	log.Info("starting", zap.String("version", version))

	personas := persona.NewRegistry()
	if cfg.Paths.Personas != "" {
		report, err := personas.LoadAll(cfg.Paths.Personas)
		if err != nil {
			log.Warn("persona load failed, using fallback", zap.Error(err))
		} else {
			log.Info("personas loaded",
				zap.Int("loaded", report.Loaded),
				zap.Int("rejected", len(report.Rejected)))
			if err := personas.Watch(); err != nil {
				log.Warn("persona hot reload disabled", zap.Error(err))
			}
		}
		defer personas.Close()
	}

	channels := channel.NewRegistry()
	if cfg.Paths.Channels != "" {
		if err := channels.LoadDir(cfg.Paths.Channels); err != nil {
			log.Warn("channel overlay load failed", zap.Error(err))
		}
	}

	mem := memory.NewStore(cfg.Memory.MaxConversations, cfg.Memory.MaxMessagesPerConversation)
	assembler := prompt.NewAssembler(prompt.Params{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		TimeoutMs:   cfg.LLM.TimeoutMs,
	}, cfg.Memory.ContextWindow)

	gateway := llm.NewGateway(cfg.LLM)
	gateway.StartProber()
	defer gateway.StopProber()

	validator := safety.NewValidator()
	facade := generator.New(assembler, gateway, template.NewGenerator(0), validator)

	exec, err := executor.New(cfg.Paths.Scripts)
	if err != nil {
		return fmt.Errorf("init executor: %w", err)
	}

	var archive monitor.Archiver
	if cfg.Paths.Database != "" {
		history, err := store.Open(cfg.Paths.Database)
		if err != nil {
			return fmt.Errorf("open history archive: %w", err)
		}
		defer history.Close()
		archive = history
		log.Info("task history archive enabled", zap.String("path", cfg.Paths.Database))
	}

	sched := monitor.NewScheduler(exec, validator, archive, monitor.Options{
		MaxConcurrent:          cfg.Scheduler.MaxConcurrent,
		HistoryMax:             cfg.Scheduler.HistoryMax,
		MaxTimeoutSeconds:      cfg.Scheduler.MaxTimeoutSeconds,
		AgingThreshold:         time.Duration(cfg.Scheduler.AgingThresholdSeconds) * time.Second,
		GracePeriod:            time.Duration(cfg.Scheduler.GracePeriodMs) * time.Millisecond,
		ResourceSampleInterval: time.Duration(cfg.Scheduler.ResourceSampleIntervalMs) * time.Millisecond,
	})
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Deps{
		Config:    cfg,
		Version:   version,
		Personas:  personas,
		Channels:  channels,
		Memory:    mem,
		Assembler: assembler,
		Gateway:   gateway,
		Generator: facade,
		Scheduler: sched,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	log.Info("shut down cleanly")
	return nil
}

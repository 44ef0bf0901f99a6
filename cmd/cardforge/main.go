package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lamim/cardforge/internal/checkpoint"
	"github.com/lamim/cardforge/internal/config"
	"github.com/lamim/cardforge/internal/extract"
	"github.com/lamim/cardforge/internal/input"
	"github.com/lamim/cardforge/internal/metrics"
	"github.com/lamim/cardforge/internal/orchestrator"
	"github.com/lamim/cardforge/internal/profile"
	"github.com/lamim/cardforge/internal/provider"
	"github.com/lamim/cardforge/internal/writer"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath  string
	envFile     string
	inputPath   string
	outputPath  string
	profileName string
	clearCache  bool
	metricsAddr string
	verbose     bool
	deckOutput  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cardforge",
		Short: "cardforge - LLM flashcard generator for Anki",
		Long: `cardforge turns word lists and existing notes into Anki flashcards by
sending each record through a configurable LLM profile and exporting the
results as a tab-delimited import file.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Generate flashcards for an input file",
		Long: `Run the generation pipeline:
1. Load the input records
2. Resume from the checkpoint when it matches the active profile
3. Generate every remaining record with the configured provider
4. Export the cards as a tab-delimited Anki import file`,
		RunE: runGeneration,
	}

	runCmd.Flags().StringVar(&configPath, "config", "config.toml", "Path to configuration file")
	runCmd.Flags().StringVar(&envFile, "env-file", ".env", "Path to environment file")
	runCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input file (overrides global.input_file)")
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (overrides global.output_file)")
	runCmd.Flags().StringVarP(&profileName, "profile", "p", "", "Profile name (overrides global.active_profile)")
	runCmd.Flags().BoolVar(&clearCache, "clear-cache", false, "Delete the checkpoint before starting")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :2112)")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	profilesCmd := &cobra.Command{
		Use:   "profiles",
		Short: "List configured profiles",
		Long:  "List every configured profile with its export columns and validation status",
		RunE:  listProfiles,
	}
	profilesCmd.Flags().StringVar(&configPath, "config", "config.toml", "Path to configuration file")

	checkpointCmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Manage checkpoints",
		Long:  "Inspect or clear the checkpoint used to resume interrupted runs",
	}
	checkpointCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "Path to configuration file")

	inspectCmd := &cobra.Command{
		Use:   "inspect [path]",
		Short: "Inspect a checkpoint",
		Long:  "Display the rows, columns and manifest of a checkpoint (defaults to global.cache_file)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  inspectCheckpoint,
	}

	clearCmd := &cobra.Command{
		Use:   "clear [path]",
		Short: "Delete a checkpoint",
		Long:  "Delete a checkpoint and its manifest (defaults to global.cache_file)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  clearCheckpoint,
	}

	checkpointCmd.AddCommand(inspectCmd)
	checkpointCmd.AddCommand(clearCmd)

	extractCmd := &cobra.Command{
		Use:   "extract <deck.apkg>",
		Short: "Extract notes from an Anki package",
		Long:  "Read the notes of an .apkg file and write them as a two-column TSV for enhancement profiles",
		Args:  cobra.ExactArgs(1),
		RunE:  extractDeck,
	}
	extractCmd.Flags().StringVarP(&deckOutput, "output", "o", "notes.tsv", "Output TSV file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(checkpointCmd)
	rootCmd.AddCommand(extractCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runGeneration(cmd *cobra.Command, args []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(os.Stderr, "Warning: failed to load env file: %v\n", err)
			}
		} else if verbose {
			fmt.Fprintf(os.Stderr, "Loaded env file: %s\n", envFile)
		}
	}

	cfg, secrets, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	applyOverrides(cfg)

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	logger, logFile, err := writer.SetupLogger(cfg.Global.LogFile, logLevel)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer func() {
		if logFile != nil {
			_ = logFile.Sync()
			_ = logFile.Close()
		}
	}()

	logger.Info("cardforge starting",
		"version", Version,
		"config", configPath,
		"provider", cfg.Global.Provider,
		"profile", cfg.Global.ActiveProfile)

	prof, err := profile.NewRegistry(cfg.Profiles).Get(cfg.Global.ActiveProfile)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	if _, _, err := writer.ResolveEncoding(cfg.Global.OutputEncoding); err != nil {
		return fmt.Errorf("failed to resolve output encoding: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := provider.New(ctx, cfg.Global.Provider, cfg, secrets, logger)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("Failed to close provider", "error", err)
		}
	}()

	records, err := input.Load(cfg.Global.InputFile, prof.UsesBackText())
	if err != nil {
		return fmt.Errorf("failed to load input: %w", err)
	}
	logger.Info("Input loaded", "path", cfg.Global.InputFile, "records", len(records))

	store := checkpoint.NewStore(cfg.Global.CacheFile, prof.Name, prof.ExportColumns(), cfg.Global.SaveInterval, logger)
	if clearCache {
		if err := store.Clear(); err != nil {
			return fmt.Errorf("failed to clear checkpoint: %w", err)
		}
	}

	collector := metrics.NewCollector(logger)
	if metricsAddr != "" {
		go collector.Serve(metricsAddr)
	}

	orch := orchestrator.New(backend, prof, cfg.Global.Pipeline(), store, logger, orchestrator.WithMetrics(collector))

	results, err := orch.Run(ctx, records)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Generation interrupted - rerun the same command to resume",
				"checkpoint", store.Path(),
				"completed", len(results),
				"total", len(records))
			return fmt.Errorf("generation interrupted (progress saved to %s)", store.Path())
		}
		return fmt.Errorf("generation failed: %w", err)
	}

	summary, err := writer.ExportFile(cfg.Global.OutputFile, results, prof.ExportColumns(), cfg.Global.OutputEncoding)
	if err != nil {
		return fmt.Errorf("failed to export cards: %w", err)
	}

	stats := orch.GetStats()
	logger.Info("Generation complete",
		"total_records", stats.TotalRecords,
		"resumed", stats.ResumedCount,
		"processed", stats.ProcessedCount,
		"successful", stats.SuccessCount,
		"degraded", stats.DegradedCount,
		"retries", stats.RetryCount,
		"duration", stats.TotalDuration)
	logger.Info("Export complete",
		"path", summary.Path,
		"records", summary.Total,
		"errors", summary.ErrorCount,
		"columns", strings.Join(summary.Columns, ", "))

	logger.Info("All done! 🎉")
	return nil
}

func applyOverrides(cfg *config.Config) {
	if inputPath != "" {
		cfg.Global.InputFile = inputPath
	}
	if outputPath != "" {
		cfg.Global.OutputFile = outputPath
	}
	if profileName != "" {
		cfg.Global.ActiveProfile = profileName
	}
}

// listProfiles prints every configured profile with its export columns
func listProfiles(cmd *cobra.Command, args []string) error {
	cfg, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	descs := profile.NewRegistry(cfg.Profiles).Describe()
	fmt.Printf("%-20s %-8s %s\n", "PROFILE", "STATUS", "DESCRIPTION")
	fmt.Println(strings.Repeat("-", 80))
	for _, d := range descs {
		marker := ""
		if d.Name == cfg.Global.ActiveProfile {
			marker = " (active)"
		}
		if d.Err != nil {
			fmt.Printf("%-20s %-8s %s%s\n", d.Name, "invalid", d.Description, marker)
			fmt.Printf("%-20s %-8s %v\n", "", "", d.Err)
			continue
		}
		fmt.Printf("%-20s %-8s %s%s\n", d.Name, "ok", d.Description, marker)
		fmt.Printf("%-20s %-8s columns: %s\n", "", "", strings.Join(d.Columns, ", "))
	}
	return nil
}

// inspectCheckpoint displays detailed information about a checkpoint
func inspectCheckpoint(cmd *cobra.Command, args []string) error {
	path, cfg, err := checkpointPath(args)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("No checkpoint found at %s\n", path)
		return nil
	}

	summary, err := checkpoint.Inspect(path)
	if err != nil {
		return fmt.Errorf("failed to inspect checkpoint: %w", err)
	}

	fmt.Printf("Checkpoint Information for: %s\n", summary.Path)
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Columns:             %s\n", strings.Join(summary.Columns, ", "))
	fmt.Printf("Rows:                %d\n", summary.Rows)
	fmt.Printf("Degraded Rows:       %d\n", summary.Degraded)

	if m := summary.Manifest; m != nil {
		fmt.Printf("Run ID:              %s\n", m.RunID)
		fmt.Printf("Profile:             %s\n", m.Profile)
		fmt.Printf("Created At:          %s\n", m.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Last Saved At:       %s\n", m.LastSavedAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("Manifest:            none (resume is positional)")
	}

	if cfg != nil && cfg.Global.InputFile != "" {
		usesBack := false
		if prof, err := profile.NewRegistry(cfg.Profiles).Get(cfg.Global.ActiveProfile); err == nil {
			usesBack = prof.UsesBackText()
		}
		if records, err := input.Load(cfg.Global.InputFile, usesBack); err == nil {
			fmt.Printf("Progress:            %d / %d (%.1f%%)\n",
				summary.Rows, len(records), summary.Progress(len(records)))
		}
	}
	return nil
}

// clearCheckpoint removes a checkpoint and its manifest
func clearCheckpoint(cmd *cobra.Command, args []string) error {
	path, _, err := checkpointPath(args)
	if err != nil {
		return err
	}

	store := checkpoint.NewStore(path, "", nil, 1, slog.Default())
	if err := store.Clear(); err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	fmt.Printf("Checkpoint cleared: %s\n", path)
	return nil
}

// checkpointPath resolves the checkpoint from the argument or the config's cache_file
func checkpointPath(args []string) (string, *config.Config, error) {
	cfg, _, err := config.Load(configPath)
	if len(args) == 1 {
		if err != nil {
			cfg = nil
		}
		return args[0], cfg, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Global.CacheFile == "" {
		return "", nil, fmt.Errorf("checkpointing is disabled (global.cache_file is empty)")
	}
	return cfg.Global.CacheFile, cfg, nil
}

// extractDeck converts an .apkg deck into enhancement input
func extractDeck(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	records, err := extract.Apkg(ctx, args[0], "")
	if err != nil {
		return fmt.Errorf("failed to extract deck: %w", err)
	}
	if err := extract.WriteTSV(deckOutput, records); err != nil {
		return fmt.Errorf("failed to write notes: %w", err)
	}

	fmt.Printf("Extracted %d notes from %s to %s\n", len(records), args[0], deckOutput)
	return nil
}

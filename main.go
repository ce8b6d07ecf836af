package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"doc-translator/internal/config"
	"doc-translator/internal/logger"
	"doc-translator/internal/pipeline"
	"doc-translator/internal/types"
)

// Command line flags
var (
	configPath string
	envFile    string
	modelFlag  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "doc-translator [source.pdf]",
	Short: "Translate a PDF while keeping its structure",
	Long: `doc-translator extracts the structure of a PDF, translates every paragraph
with a local or remote language model and renders a translated PDF.

Without an argument the source is raw/document.pdf. Progress is checkpointed
to the translated document so an interrupted run keeps its work.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a JSON config file")
	rootCmd.Flags().StringVar(&envFile, "env-file", config.DefaultEnvFile, "dotenv file loaded before the config")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "model name, overrides the config")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
}

func run(cmd *cobra.Command, args []string) error {
	m := config.NewConfigManager(configPath)
	m.SetEnvFile(envFile)
	if err := m.Load(); err != nil {
		return err
	}
	if len(args) == 1 {
		m.SetInputPath(args[0])
	}
	if modelFlag != "" {
		m.GetConfig().Model = modelFlag
	}
	if err := m.Validate(); err != nil {
		return err
	}
	cfg := m.Resolved()

	logCfg := logger.DefaultConfig()
	logCfg.FilePath = cfg.LogFile
	logCfg.Level = logger.ParseLevel(cfg.LogLevel)
	if verbose {
		logCfg.Level = logger.LevelDebug
		logCfg.Console = os.Stderr
	}
	if err := logger.Init(logCfg); err != nil {
		return types.NewAppErrorWithDetails(types.ErrConfig, "failed to initialize logger", cfg.LogFile, err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Translating %s with %s (%s)\n", cfg.InputPath, cfg.Model, cfg.Backend)

	p, err := pipeline.New(ctx, cfg, out)
	if err != nil {
		return err
	}
	res, err := p.Run(ctx)
	if err != nil {
		if res != nil && res.Stats.Checkpoints > 0 {
			fmt.Fprintf(out, "Partial translation saved to %s\n", cfg.TranslatedPath)
		}
		return err
	}

	fmt.Fprintf(out, "Extraction strategy: %s\n", res.Strategy)
	fmt.Fprintf(out, "Translated %d of %d non-empty paragraphs (%d kept original)\n",
		res.Stats.Translated, res.Stats.NonEmpty, res.Stats.Passthrough)
	fmt.Fprintf(out, "Output: %s\n", res.OutputPath)
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

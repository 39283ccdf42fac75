// Package commands defines the qagen command line interface.
package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"qagen/internal/config"
	"qagen/internal/domain"
	"qagen/internal/observability"
	"qagen/internal/pipeline"
)

var (
	configPath string
	inputPath  string
	singleFile bool
	keyword    string
	resume     bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "qagen",
	Short: "Generate labeled QA datasets from policy documents",
	Long: `qagen extracts text from PDF policy documents, builds keyword-anchored
context windows with sensitive content masked, and generates validated
question-answer pairs through a local inference endpoint.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

// Execute runs the CLI.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration file")
	rootCmd.Flags().StringVarP(&inputPath, "input", "i", "", "input folder of PDF documents (or a single file with --single-file)")
	rootCmd.Flags().BoolVar(&singleFile, "single-file", false, "treat --input as a single document")
	rootCmd.Flags().StringVarP(&keyword, "keyword", "k", "", "restrict generation to one keyword")
	rootCmd.Flags().BoolVar(&resume, "resume", false, "skip units completed in a previous run")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	_ = rootCmd.MarkFlagRequired("input")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Observability.LogLevel = "debug"
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "qagen",
	})

	p, err := pipeline.NewFromConfig(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := p.Run(ctx, pipeline.Options{
		Input:        inputPath,
		SingleFile:   singleFile,
		Keyword:      keyword,
		Resume:       resume,
		ShowProgress: true,
	})
	if err != nil {
		return err
	}

	printSummary(summary, cfg.Output.BaseFolder)
	return nil
}

func printSummary(s *domain.RunSummary, outputDir string) {
	bold := color.New(color.Bold)

	fmt.Println()
	bold.Println("Run complete")
	fmt.Printf("  Run ID:      %s\n", s.RunID)
	fmt.Printf("  Documents:   %d", s.Documents)
	if s.DocumentsFailed > 0 {
		color.Yellow("  (%d failed to extract)", s.DocumentsFailed)
	} else {
		fmt.Println()
	}
	fmt.Printf("  Units:       %d completed", s.UnitsCompleted)
	if s.UnitsSkipped > 0 {
		fmt.Printf(", %d resumed", s.UnitsSkipped)
	}
	if s.UnitsFailed > 0 {
		color.New(color.FgRed).Printf(", %d failed", s.UnitsFailed)
	}
	fmt.Println()
	fmt.Printf("  Pairs:       %d\n", s.PairsGenerated)
	fmt.Printf("  Duration:    %s\n", s.CompletedAt.Sub(s.StartedAt).Round(time.Second))
	fmt.Printf("  Output:      %s\n", outputDir)

	if len(s.Failures) > 0 {
		fmt.Println()
		color.Yellow("Failed units (retry with --resume):")
		for _, f := range s.Failures {
			fmt.Printf("  %s  [%s] %s\n", f.Unit.Key(), f.Kind, f.Message)
		}
	}
}

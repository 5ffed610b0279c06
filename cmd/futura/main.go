package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/chat"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/config"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/gateway"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/llm"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/tasks"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/taxonomy"
)

var version = "dev"

// PipelineFactory builds the task pipeline (allows injection in tests).
type PipelineFactory func(cfg *config.Config) *tasks.Pipeline

// ProcessOptions for running the pipeline with custom dependencies.
type ProcessOptions struct {
	PipelineFactory PipelineFactory
	Stdin           io.Reader
	Stdout          io.Writer
}

func defaultPipelineFactory(cfg *config.Config) *tasks.Pipeline {
	return tasks.NewPipeline(llm.NewClient(cfg), taxonomy.NewClient(cfg))
}

var rootCmd = &cobra.Command{
	Use:   "futura",
	Short: "futura - conversational job task survey backend",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway (HTTP API + chat channels + session sweep)",
	RunE:  runServe,
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the task pipeline over a transcript from stdin or a file",
	RunE:  runProcess,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize the config directory",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show futura status",
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

var (
	jobTitleFlag   string
	transcriptFlag string
	matchFlag      bool
)

func init() {
	processCmd.Flags().StringVarP(&jobTitleFlag, "job-title", "j", "", "Job title for the transcript")
	processCmd.Flags().StringVarP(&transcriptFlag, "file", "f", "", "Transcript file (one user message per line, default stdin)")
	processCmd.Flags().BoolVar(&matchFlag, "match", true, "Match canonical tasks against the taxonomy")
	rootCmd.AddCommand(serveCmd, processCmd, onboardCmd, statusCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	return gw.Run(context.Background())
}

func runProcess(cmd *cobra.Command, args []string) error {
	return runProcessWithOptions(ProcessOptions{})
}

// runProcessWithOptions runs the pipeline with injectable dependencies
// for testing.
func runProcessWithOptions(opts ProcessOptions) error {
	if strings.TrimSpace(jobTitleFlag) == "" {
		return fmt.Errorf("--job-title is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	factory := opts.PipelineFactory
	if factory == nil {
		factory = defaultPipelineFactory
	}
	pipe := factory(cfg)

	stdin := opts.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	var input io.Reader = stdin
	if transcriptFlag != "" {
		f, err := os.Open(transcriptFlag)
		if err != nil {
			return fmt.Errorf("open transcript: %w", err)
		}
		defer f.Close()
		input = f
	}

	var transcript []chat.Turn
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		transcript = append(transcript, chat.Turn{Role: "user", Text: line})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}
	if len(transcript) == 0 {
		return fmt.Errorf("transcript is empty")
	}

	ctx := context.Background()
	records := pipe.ProcessFast(ctx, jobTitleFlag, transcript)
	if matchFlag {
		records = pipe.Match(ctx, records)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"jobTitle": jobTitleFlag, "tasks": records})
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	out := cmd.OutOrStdout()
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(out, "Created config: %s\n", cfgPath)
	} else {
		fmt.Fprintf(out, "Config already exists: %s\n", cfgPath)
	}

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintf(out, "  1. Edit %s to set your API key\n", cfgPath)
	fmt.Fprintln(out, "  2. Or set FUTURA_API_KEY environment variable")
	fmt.Fprintln(out, "  3. Run 'futura serve' to start the gateway")

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(out, "Config: error (%v)\n", err)
		return nil
	}

	fmt.Fprintf(out, "Config: %s\n", config.ConfigPath())
	fmt.Fprintf(out, "Model: %s\n", cfg.Provider.Model)
	fmt.Fprintf(out, "API Key: %s\n", maskKey(cfg.Provider.APIKey))
	if cfg.Taxonomy.BaseURL != "" {
		fmt.Fprintf(out, "Taxonomy: %s\n", cfg.Taxonomy.BaseURL)
	} else {
		fmt.Fprintln(out, "Taxonomy: not configured")
	}
	fmt.Fprintf(out, "Session DB: %s (TTL %d min)\n", cfg.Session.DBPath, cfg.Session.TTLMinutes)
	fmt.Fprintf(out, "Gateway: %s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)
	fmt.Fprintf(out, "Telegram: enabled=%v\n", cfg.Channels.Telegram.Enabled)

	return nil
}

func maskKey(key string) string {
	switch {
	case key == "":
		return "not set"
	case len(key) > 8:
		return key[:4] + "..." + key[len(key)-4:]
	default:
		return "set"
	}
}

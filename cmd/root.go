// Package cmd implements the CLI shell: one root command, `rlm <query>
// <file>`, wiring the config file, LLM client, and Session Façade
// together and mapping the turn loop's outcome onto the documented exit
// codes. Grounded on the teacher's cmd/root.go (single RunE entry point,
// cobra.Command with a package-level flag set bound in init, Execute()
// wrapping os.Exit) and cmd/chat.go's viper.BindPFlag calls. Flags take
// precedence over the config file through applyFlagOverrides and the
// direct --provider/--model checks in runRLM.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rlm-runtime/rlm/internal/config"
	"github.com/rlm-runtime/rlm/internal/llm"
	"github.com/rlm-runtime/rlm/internal/rlm/adapter"
	"github.com/rlm-runtime/rlm/internal/rlm/orchestrator"
	"github.com/rlm-runtime/rlm/internal/rlm/rlmerr"
	"github.com/rlm-runtime/rlm/internal/rlm/rlmsession"
)

var (
	flagMaxTurns int
	flagTimeout  int
	flagModel    string
	flagProvider string
	flagAdapter  string
	flagConfig   string
	flagVerbose  bool
	flagDryRun   bool
)

var rootCmd = &cobra.Command{
	Use:   "rlm <query> <file>",
	Short: "Answer a query over a document with a recursive LLM turn loop",
	Long: `rlm loads a text document and drives an LLM through a bounded
series of turns, letting it inspect the document and narrow results with
a small expression language, until it returns a final answer.

Examples:
  rlm "how many errors are there" access.log
  rlm --model gpt-5.2 --provider openai "summarize the warnings" app.log
  rlm --verbose --max-turns 20 "find the slowest request" access.log`,
	Args: cobra.ExactArgs(2),
	RunE: runRLM,
}

func init() {
	rootCmd.Flags().IntVar(&flagMaxTurns, "max-turns", 0, "Maximum turn loop iterations (default from config, else 10)")
	rootCmd.Flags().IntVar(&flagTimeout, "timeout", 0, "Overall run timeout in milliseconds (default from config, else 30000)")
	rootCmd.Flags().StringVar(&flagModel, "model", "", "Model name override")
	rootCmd.Flags().StringVar(&flagProvider, "provider", "", "Provider name override (anthropic, openai, gemini)")
	rootCmd.Flags().StringVar(&flagAdapter, "adapter", "", "Adapter override (lisp or js); auto-detected from model if omitted")
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "Path to a JSON config file")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Show a live turn-by-turn view")
	rootCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Load the document and resolve config, but do not run the turn loop")

	_ = viper.BindPFlag("llm.model", rootCmd.Flags().Lookup("model"))
	_ = viper.BindPFlag("llm.provider", rootCmd.Flags().Lookup("provider"))
	_ = viper.BindPFlag("rlm.maxTurns", rootCmd.Flags().Lookup("max-turns"))
}

// Execute runs the root command and exits the process with the
// documented exit code (spec.md §6): 0 success, 1 user error, 2 runtime
// failure after max turns.
func Execute() {
	os.Exit(run())
}

func run() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitCodeFor(err)
	}
	return 0
}

// exitCodeFor maps the error taxonomy onto spec.md §6's exit codes:
// 1 for user error (bad-input, or anything cobra itself rejected), 2 for
// a runtime failure surfaced after the turn loop ran (no-progress,
// exhausted max turns).
func exitCodeFor(err error) int {
	kind, ok := rlmerr.KindOf(err)
	if !ok || kind == rlmerr.KindBadInput {
		return 1
	}
	return 2
}

func runRLM(cmd *cobra.Command, args []string) error {
	query, path := args[0], args[1]

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return rlmerr.BadInputf("load config: %s", err)
	}
	applyFlagOverrides(cfg)

	text, err := os.ReadFile(path)
	if err != nil {
		return rlmerr.BadInputf("read file %q: %s", path, err)
	}

	providerName := flagProvider
	if providerName == "" {
		providerName = cfg.LLM.Provider
	}
	client, err := llm.NewClientByName(cfg, providerName, flagModel)
	if err != nil {
		return rlmerr.BadInputf("build llm client: %s", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: verboseLevel(),
	}))

	opts := rlmsession.Options{
		Client:      client,
		ModelName:   flagModel,
		AdapterName: flagAdapter,
		Sandbox:     cfg.Sandbox,
		MaxTurns:    cfg.RLM.MaxTurns,
		Logger:      logger,
	}

	var turnEvents chan orchestrator.TurnEvent
	if flagVerbose {
		turnEvents = make(chan orchestrator.TurnEvent, 16)
		opts.OnTurn = func(evt orchestrator.TurnEvent) { turnEvents <- evt }
	}

	sess, err := rlmsession.New(opts)
	if err != nil {
		return rlmerr.BadInputf("open session: %s", err)
	}
	defer sess.Close()

	lineCount, err := sess.Load(cmd.Context(), string(text))
	if err != nil {
		return rlmerr.BadInputf("load document %q: %s", path, err)
	}

	if flagDryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "config ok: provider=%s model=%s adapter=%s maxTurns=%d lines=%d\n",
			providerName, flagModel, resolvedAdapterName(flagAdapter, flagModel), cfg.RLM.MaxTurns, lineCount)
		return nil
	}

	timeout := time.Duration(cfg.Sandbox.TurnTimeoutMs) * time.Millisecond * time.Duration(cfg.RLM.MaxTurns)
	if flagTimeout > 0 {
		timeout = time.Duration(flagTimeout) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var outcome orchestrator.Outcome
	if flagVerbose {
		outcome, err = runVerbose(ctx, sess, query, turnEvents)
	} else {
		outcome, err = sess.Execute(ctx, query)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), outcome.Text)

	if outcome.Terminated == "max-turns" {
		return rlmerr.RuntimeErrorf("no final answer after %d turns", outcome.TurnsUsed)
	}
	return nil
}

func applyFlagOverrides(cfg *config.Config) {
	if flagMaxTurns > 0 {
		cfg.RLM.MaxTurns = flagMaxTurns
	}
}

func resolvedAdapterName(explicit, model string) string {
	if explicit != "" {
		return explicit
	}
	name, _ := adapter.AutoDetect(model)
	return name
}

func verboseLevel() slog.Level {
	if flagVerbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

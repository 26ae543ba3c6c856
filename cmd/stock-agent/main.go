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

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/aaaa47080/stock-agent-sub002/internal/hitl"
)

var (
	cyan  = color.New(color.FgCyan).SprintFunc()
	green = color.New(color.FgGreen).SprintFunc()
	gray  = color.New(color.FgHiBlack).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
)

func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var interactive bool

	rootCmd := &cobra.Command{
		Use:   "stock-agent [query]",
		Short: "Market-analysis assistant with learned plan reuse",
		Long: "stock-agent routes natural-language market questions to analysis workers,\n" +
			"confirms multi-step plans before running them, and learns successful plans\n" +
			"for reuse on similar queries.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			if interactive || len(args) == 0 {
				return runInteractive(cmd.Context(), cfg)
			}
			return runOnce(cmd.Context(), cfg, strings.Join(args, " "), viper.GetString("session"))
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&interactive, "interactive", "i", false, "Interactive conversation mode")
	flags.StringP("session", "s", "", "Session ID to continue")
	flags.String("api-key", "", "LLM API key")
	flags.String("base-url", "https://api.openai.com/v1", "LLM API base URL")
	flags.StringP("model", "m", "gpt-4o-mini", "Model name")
	flags.String("data-dir", "~/.stock-agent", "Data directory (sessions, codebook, checkpoints)")
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flags.String("log-format", "text", "Log format (text, json)")

	for _, name := range []string{"session", "api-key", "base-url", "model", "data-dir", "log-level", "log-format"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
	viper.SetEnvPrefix("STOCK_AGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("stock-agent")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.config")
	viper.AddConfigPath(".")

	return rootCmd
}

func resolveConfig() (runtimeConfig, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return runtimeConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := runtimeConfig{
		APIKey:    viper.GetString("api-key"),
		BaseURL:   viper.GetString("base-url"),
		Model:     viper.GetString("model"),
		DataDir:   viper.GetString("data-dir"),
		LogLevel:  viper.GetString("log-level"),
		LogFormat: viper.GetString("log-format"),
	}
	if cfg.APIKey == "" {
		return runtimeConfig{}, fmt.Errorf("no API key: set --api-key or STOCK_AGENT_API_KEY")
	}
	return cfg, nil
}

// runOnce answers one query, asking any pipeline questions inline.
func runOnce(ctx context.Context, cfg runtimeConfig, query, sessionID string) error {
	gateway := hitl.NewInteractiveGateway(5*time.Minute, isTTY())
	container, err := buildContainer(ctx, cfg, gateway)
	if err != nil {
		return err
	}

	outcome, err := container.Engine.Run(ctx, sessionID, query)
	if err != nil {
		return err
	}
	printOutcome(outcome.Response)
	return nil
}

// runInteractive keeps one session across many queries until EOF or exit.
func runInteractive(ctx context.Context, cfg runtimeConfig) error {
	gateway := hitl.NewInteractiveGateway(5*time.Minute, isTTY())
	container, err := buildContainer(ctx, cfg, gateway)
	if err != nil {
		return err
	}

	sessionID := viper.GetString("session")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("%s session %s\n", bold("stock-agent"), gray(sessionID))
	fmt.Println(gray("Ask about markets; 'exit' to quit."))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("%s ", cyan("you>"))
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "exit" || query == "quit" {
			break
		}

		outcome, err := container.Engine.Run(ctx, sessionID, query)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		printOutcome(outcome.Response)
	}
	return scanner.Err()
}

func printOutcome(response string) {
	fmt.Printf("\n%s %s\n\n", green("agent>"), response)
}

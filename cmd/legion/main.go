// Package main provides the CLI entry point for the Legion multi-agent
// orchestration runtime.
//
// Legion dispatches a Collective of agent, user, and mock Participants
// through a bounded tool-use loop, arbitrating tool approval through a
// communication chain (spec §4).
//
// # Basic Usage
//
// Start the runtime, listening on every configured Medium:
//
//	legion serve --config legion.yaml
//
// Check the loaded Collective's roster:
//
//	legion status --config legion.yaml
//
// Send one message through the Communicator without starting any Medium:
//
//	legion send --config legion.yaml --from user --to assistant --text "hello"
//
// # Environment Variables
//
//   - LEGION_CONFIG: path to the configuration file (default: legion.yaml)
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY: Provider Adapter credentials
//   - SLACK_BOT_TOKEN, SLACK_APP_TOKEN, DISCORD_BOT_TOKEN, TELEGRAM_BOT_TOKEN: Medium credentials
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/legionai/legion/internal/collective"
	"github.com/legionai/legion/internal/communicator"
	"github.com/legionai/legion/internal/providers"
)

// Build information, populated by ldflags during build:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached,
// separated from main() to facilitate testing, per the teacher's pattern.
func buildRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "legion",
		Short: "Legion - multi-agent orchestration runtime",
		Long: `Legion dispatches a Collective of agent, user, and mock Participants
through a bounded tool-use loop, arbitrating tool approval through a
communication chain.

Supported Mediums: Slack, Discord, Telegram
Supported Provider Adapters: Anthropic (Claude), OpenAI (GPT), AWS Bedrock`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", resolveConfigPath(""), "path to YAML configuration file")

	root.AddCommand(
		buildServeCmd(&configPath),
		buildStatusCmd(&configPath),
		buildSendCmd(&configPath),
	)
	return root
}

// resolveConfigPath mirrors the teacher's profile-aware resolution, minus
// the multi-profile directory (Legion has one config per process): an
// explicit flag wins, then LEGION_CONFIG, then the default file name.
func resolveConfigPath(flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	if env := strings.TrimSpace(os.Getenv("LEGION_CONFIG")); env != "" {
		return env
	}
	return "legion.yaml"
}

func buildServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the runtime and listen on every configured Medium",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, resolveConfigPath(*configPath))
			if err != nil {
				return err
			}
			defer a.shutdown(context.Background())

			if err := a.startMediums(ctx); err != nil {
				return err
			}

			a.logger.Info(ctx, "legion runtime started",
				"participants", len(a.collective.List(collective.Filter{})),
				"providers", len(a.providerMap),
			)
			<-ctx.Done()
			a.logger.Info(ctx, "legion runtime shutting down")
			return nil
		},
	}
}

func buildStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the loaded Collective's roster and configured providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, resolveConfigPath(*configPath))
			if err != nil {
				return err
			}
			defer a.shutdown(context.Background())

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Providers: %s\n", strings.Join(providerNames(a.providerMap), ", "))
			fmt.Fprintln(out, "Participants:")
			for _, p := range a.collective.List(collective.Filter{}) {
				fmt.Fprintf(out, "  %-16s variant=%-6s status=%s\n", p.ID, p.Variant, p.Status)
			}
			return nil
		},
	}
}

func buildSendCmd(configPath *string) *cobra.Command {
	var from, to, text, conv string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one message through the Communicator and print the reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, resolveConfigPath(*configPath))
			if err != nil {
				return err
			}
			defer a.shutdown(context.Background())

			reply, err := a.comm.Send(ctx, communicator.Request{
				From:             from,
				To:               to,
				Text:             text,
				ConversationName: conv,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "user", "sending participant id")
	cmd.Flags().StringVar(&to, "to", "assistant", "receiving participant id")
	cmd.Flags().StringVar(&text, "text", "", "message text")
	cmd.Flags().StringVar(&conv, "conversation", "", "conversation name (default: the pair's default conversation)")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func providerNames(m map[string]providers.Provider) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	return names
}

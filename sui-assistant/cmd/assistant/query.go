package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vivon-labs/vivon/sui-assistant/internal/graph"
)

var queryAssistant string

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a single question and stream the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryAssistant, "assistant", "a", "sui_assistant", "assistant to ask (sui_assistant or vivon_assistant)")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	assistants, _, cleanup, err := buildAssistants(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	a, ok := assistants[queryAssistant]
	if !ok {
		return fmt.Errorf("unknown assistant %q", queryAssistant)
	}

	out := cmd.OutOrStdout()
	history := []graph.Message{{Role: graph.RoleUser, Content: strings.Join(args, " ")}}
	sink := graph.SinkFunc(func(token string) error {
		_, err := fmt.Fprint(out, token)
		return err
	})
	res, err := a.Answer(ctx, history, sink)
	fmt.Fprintln(out)
	if err != nil {
		return err
	}
	if res.Reason != nil {
		logger.Warn().Err(res.Reason).Int("agent_calls", res.AgentCalls).Msg("Workflow stopped early")
	}
	logger.Debug().Int("steps", len(res.Steps)).Msg("Query complete")
	return nil
}

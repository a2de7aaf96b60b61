package main

import (
	"encoding/json"
	"io"

	"github.com/goliatone/go-folio/adapters/gocommand"
	"github.com/goliatone/go-folio/core"
	folioquery "github.com/goliatone/go-folio/query"
	"github.com/spf13/cobra"
)

func newReplayCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <event-id>",
		Short: "Reprocess a failed event from its stored payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatcher(cmd, flags, func() error {
				outcome, err := gocommand.ReplayEvent(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), outcome)
			})
		},
	}
}

func newShowCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <event-id>",
		Short: "Print the processing record for an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatcher(cmd, flags, func() error {
				record, err := gocommand.Query[folioquery.GetRecordMessage, core.ProcessingRecord](
					cmd.Context(), folioquery.GetRecordMessage{EventID: args[0]},
				)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), record)
			})
		},
	}
}

func newListCommand(flags *globalFlags) *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List processing records, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDispatcher(cmd, flags, func() error {
				records, err := gocommand.Query[folioquery.ListRecordsMessage, []core.ProcessingRecord](
					cmd.Context(), folioquery.ListRecordsMessage{Status: status, Limit: limit},
				)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), records)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status: received, sent or failed")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum records to return")
	return cmd
}

func withDispatcher(cmd *cobra.Command, flags *globalFlags, run func() error) error {
	ctx := cmd.Context()
	env, err := setup(ctx, flags, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	bridge, closeBridge, err := env.openBridge(ctx, false)
	if err != nil {
		return err
	}
	defer closeBridge()

	subs, err := dispatcher(bridge)
	if err != nil {
		return err
	}
	defer subs.Unsubscribe()
	return run()
}

func printJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

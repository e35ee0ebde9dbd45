package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	var (
		clearAll bool
		listIDs  bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or clear the stored conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := opts.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			store, ok := eng.Store()
			if !ok {
				return errors.New("history requires history.kind sqlite")
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			switch {
			case listIDs:
				ids, err := store.Conversations(ctx)
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(out, id)
				}
				return nil
			case clearAll:
				if err := store.Clear(ctx); err != nil {
					return err
				}
				fmt.Fprintf(out, "Cleared conversation %s\n", store.ConversationID())
				return nil
			}

			msgs, err := store.List(ctx)
			if err != nil {
				return err
			}
			if len(msgs) == 0 {
				fmt.Fprintln(out, dimStyle.Render("(empty conversation)"))
				return nil
			}
			for _, m := range msgs {
				fmt.Fprintln(out, formatMessage(m))
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&clearAll, "clear", false, "delete every message of the conversation")
	cmd.Flags().BoolVar(&listIDs, "conversations", false, "list the conversation ids in the database")
	cmd.MarkFlagsMutuallyExclusive("clear", "conversations")

	return cmd
}

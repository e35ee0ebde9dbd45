package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/germanamz/promptchain/pkg/prompt"
	"github.com/spf13/cobra"
)

func newRunCmd(opts *globalOptions) *cobra.Command {
	var (
		vars   []string
		render bool
	)

	cmd := &cobra.Command{
		Use:   "run [input...]",
		Short: "Run the chain once and print the reply",
		Long: `Run renders the prompt with the given values, calls the backend once,
and prints the reply. Arguments are joined into a single positional value;
with no arguments and no --var flags, the input is read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			named, err := parseVars(vars)
			if err != nil {
				return err
			}

			v := prompt.Named(named)
			switch {
			case len(args) > 0:
				v.Positional = []string{strings.Join(args, " ")}
			case len(vars) == 0:
				in, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				v.Positional = []string{strings.TrimRight(string(in), "\n")}
			}

			eng, err := opts.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			reply, err := eng.Run(cmd.Context(), v)
			if err != nil {
				return err
			}

			opts.log.Info("run finished", "conversation", eng.Conversation())
			if u, ok := eng.Usage(); ok {
				opts.log.Debug("usage", "input_tokens", u.InputTokens, "output_tokens", u.OutputTokens)
			}
			if store, ok := eng.Store(); ok {
				if err := store.Err(); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: history not saved: %v\n", err)
				}
			}

			text := reply.Content
			if render {
				text = renderMarkdown(text, 100)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}

	cmd.Flags().StringArrayVar(&vars, "var", nil, "named prompt value as key=value (repeatable)")
	cmd.Flags().BoolVar(&render, "render", false, "render the reply as markdown")

	return cmd
}

package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/germanamz/promptchain/pkg/projectdir"
	"github.com/germanamz/promptchain/pkg/prompt"
	"github.com/spf13/cobra"
)

func newInitCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a project directory with a default config and prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d := projectdir.New(opts.projectDir)

			if err := projectdir.Bootstrap(d); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s\n", d.Root())

			return nil
		},
	}
}

func newPromptsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prompts",
		Short: "List prompt templates in the project directory and their variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d := projectdir.New(opts.projectDir)
			out := cmd.OutOrStdout()

			files := d.PromptFiles()
			if len(files) == 0 {
				fmt.Fprintln(out, dimStyle.Render("(no prompts in "+d.PromptsDir()+")"))
				return nil
			}

			for _, path := range files {
				name := filepath.Base(path)

				tmpl, err := prompt.Load(path)
				if err != nil {
					opts.log.Warn("skipping prompt", "file", path, "error", err)
					fmt.Fprintf(out, "%s  %s\n", name, dimStyle.Render("(invalid)"))
					continue
				}

				fmt.Fprintf(out, "%s  %s\n", name, strings.Join(tmpl.Variables(), ", "))
			}

			return nil
		},
	}
}

package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/malbeclabs/aquabot/internal/router"
	"github.com/spf13/cobra"
)

type AskCmd struct{}

func NewAskCmd() *AskCmd {
	return &AskCmd{}
}

func (c *AskCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ask <question...>",
		Short:   "Answer a single question and print the result",
		Example: "  aquabot ask What is the status of Agra?\n  aquabot ask plot recharge for Agra",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := loggerFor(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			s, err := loadStore(ctx, log, cfg)
			if err != nil {
				color.New(color.FgRed).Fprintln(out, router.UnavailableMessage)
				return fmt.Errorf("failed to load data: %w", err)
			}
			r, err := newRouter(ctx, log, cfg, s)
			if err != nil {
				return err
			}

			resp := r.Answer(ctx, strings.Join(args, " "))
			if resp.GraphURL != "" {
				fmt.Fprint(out, "Chart: ")
				color.New(color.FgCyan, color.Underline).Fprintln(out, resp.GraphURL)
				return nil
			}
			printAnswer(out, resp.Answer)
			return nil
		},
	}

	addDataFlags(cmd.Flags())
	addChartFlags(cmd.Flags())

	return cmd
}

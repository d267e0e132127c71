package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEvalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eval <expression>",
		Short: "Evaluate one expression and print its reduction steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd, cfg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			endpoint, stopService, err := resolveEndpoint(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer stopService()

			reducer, err := newReducer(cfg, endpoint, nil, logger)
			if err != nil {
				return err
			}
			ev, evalErr := reducer.Evaluate(ctx, args[0])

			out := cmd.OutOrStdout()
			for i, s := range ev.Steps {
				fmt.Fprintf(out, "%d. %s → %s\n", i+1, s.Before, s.After)
			}
			fmt.Fprintf(out, "remote calls: %d  retries: %d  request: %d B  response: %d B  status: %d\n",
				ev.RemoteCalls, ev.Retries, ev.RequestBytes, ev.ResponseBytes, ev.Status)
			if evalErr != nil {
				return evalErr
			}
			fmt.Fprintf(out, "= %v\n", ev.Value)
			return nil
		},
	}
}

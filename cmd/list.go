package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/signalnine/calcbench/internal/dataset"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the dataset size and equations per type",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			rows, err := loadRows(cfg, "", 0)
			if err != nil {
				return err
			}
			counts := dataset.CountByType(rows)
			types := make([]string, 0, len(counts))
			for t := range counts {
				types = append(types, t)
			}
			sort.Strings(types)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Dataset: %s (%d equations)\n", cfg.Dataset, len(rows))
			fmt.Fprintln(out, "\nTypes:")
			for _, t := range types {
				name := t
				if name == "" {
					name = "(none)"
				}
				fmt.Fprintf(out, "  - %s: %d\n", name, counts[t])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flagDataset, "dataset", "", "override dataset CSV path")
	return cmd
}

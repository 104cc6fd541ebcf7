package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"restockwatch/internal/config"
	"restockwatch/internal/state"
)

// newStateCmd creates the 'state' subcommand, an operator convenience that
// prints the persisted watch state. A watch that has never run reports
// UNKNOWN.
func newStateCmd() *cobra.Command {
	var stateFile string

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Prints the persisted watch state",

		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if stateFile != "" {
				cfg.State.File = stateFile
			}

			store := state.NewFileStore(cfg.State.File, zap.NewNop())
			st, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}

			payload, err := json.MarshalIndent(st, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal state: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return nil
		},
	}

	cmd.Flags().StringVar(&stateFile, "state-file", "", "override the state file path")

	return cmd
}

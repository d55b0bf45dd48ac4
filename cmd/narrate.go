package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/planwise/planner-cli/internal/narrative"
)

var narrateQuery string

var narrateCmd = &cobra.Command{
	Use:   "narrate <input.json>",
	Short: "Generate a plain-language summary of a projection input",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := loadProjectionInput(args[0])
		if err != nil {
			return err
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Narrative.Generate(cmd.Context(), input, narrateQuery)
		if err != nil {
			var perr *narrative.ScenarioParseError
			if errors.As(err, &perr) {
				// Report the taxonomy instead of a bare error string.
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]string{
					"status": "failed",
					"reason": string(perr.Reason),
					"error":  perr.Message,
				})
			}
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	narrateCmd.Flags().StringVarP(&narrateQuery, "query", "q", "", "free-text scenario query to apply before narrating")
	rootCmd.AddCommand(narrateCmd)
}

package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario <query...>",
	Short: "Parse a free-text what-if query into projection overrides",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		query := strings.Join(args, " ")
		resp := env.Parser.Parse(cmd.Context(), query)

		// Parse failures are part of the response contract, not command
		// errors; the caller inspects success and reason.
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	rootCmd.AddCommand(scenarioCmd)
}

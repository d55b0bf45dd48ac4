package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/planwise/planner-cli/internal/fingerprint"
	"github.com/planwise/planner-cli/internal/model"
)

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint <input.json>",
	Short: "Compute the deterministic cache key for a projection input",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := loadProjectionInput(args[0])
		if err != nil {
			return err
		}

		key, err := fingerprint.CacheKey(input)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}

// loadProjectionInput reads a projection input JSON document from a file, or
// from stdin when path is "-".
func loadProjectionInput(path string) (model.ProjectionInput, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "read input %s", path)
	}

	var input model.ProjectionInput
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, eris.Wrapf(err, "parse input %s", path)
	}
	return input, nil
}

func init() {
	rootCmd.AddCommand(fingerprintCmd)
}

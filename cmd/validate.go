package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/planwise/planner-cli/internal/compliance"
	"github.com/planwise/planner-cli/internal/model"
)

var (
	validateSections bool
	validateRequire  []string
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Screen generated text against the banned-phrase policy",
	Long: `Reads text from a file (or stdin with "-") and reports policy violations.
With --sections the input is a JSON array of {name, text, exempt} sections;
exempt sections are skipped and --require names must all be present.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		policy, err := compliance.LoadPolicy(cfg.Compliance.PolicyPath)
		if err != nil {
			return err
		}
		validator := compliance.NewValidator(policy)

		var data []byte
		if args[0] == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return eris.Wrapf(err, "read input %s", args[0])
		}

		var result model.ValidationResult
		if validateSections {
			var sections []model.Section
			if err := json.Unmarshal(data, &sections); err != nil {
				return eris.Wrap(err, "parse sections")
			}
			result, err = validator.ValidateSections(sections, validateRequire)
			if err != nil {
				return err
			}
		} else {
			result = validator.ValidateText(string(data))
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateSections, "sections", false, "treat input as JSON sections")
	validateCmd.Flags().StringSliceVar(&validateRequire, "require", nil, "section names that must be present")
	rootCmd.AddCommand(validateCmd)
}

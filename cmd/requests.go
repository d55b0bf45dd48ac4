package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/planwise/planner-cli/internal/model"
	"github.com/planwise/planner-cli/internal/store"
)

var (
	requestsOutcome     string
	requestsFingerprint string
	requestsLimit       int
)

var requestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "List recorded narrative requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		records, err := st.ListRecords(cmd.Context(), store.RecordFilter{
			Outcome:     model.NarrativeOutcome(requestsOutcome),
			Fingerprint: requestsFingerprint,
			Limit:       requestsLimit,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	},
}

func init() {
	requestsCmd.Flags().StringVar(&requestsOutcome, "outcome", "", "filter by outcome (generated|cached|rejected|failed)")
	requestsCmd.Flags().StringVar(&requestsFingerprint, "fingerprint", "", "filter by projection fingerprint")
	requestsCmd.Flags().IntVar(&requestsLimit, "limit", 50, "max records to return")
	rootCmd.AddCommand(requestsCmd)
}

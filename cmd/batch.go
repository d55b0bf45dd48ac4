package main

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/planwise/planner-cli/internal/model"
)

var (
	batchQueriesPath string
	batchLimit       int
)

var batchCmd = &cobra.Command{
	Use:   "batch <input.json>",
	Short: "Run scenario narratives for a file of what-if queries",
	Long: `Applies each query from a CSV or XLSX file (first column, optional "query"
header) against the same projection input and prints one JSON result per line.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		input, err := loadProjectionInput(args[0])
		if err != nil {
			return err
		}

		queries, err := loadQueries(batchQueriesPath)
		if err != nil {
			return err
		}
		if batchLimit > 0 && len(queries) > batchLimit {
			queries = queries[:batchLimit]
		}
		if len(queries) == 0 {
			zap.L().Info("no queries found", zap.String("file", batchQueriesPath))
			return nil
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		zap.L().Info("processing batch",
			zap.Int("queries", len(queries)),
			zap.Int("concurrency", cfg.Batch.MaxConcurrentQueries),
		)

		type batchLine struct {
			Query  string                 `json:"query"`
			Result *model.NarrativeResult `json:"result,omitempty"`
			Error  string                 `json:"error,omitempty"`
		}

		var mu sync.Mutex
		enc := json.NewEncoder(cmd.OutOrStdout())

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Batch.MaxConcurrentQueries)

		var succeeded, failed atomic.Int64

		for _, query := range queries {
			g.Go(func() error {
				line := batchLine{Query: query}

				result, err := env.Narrative.Generate(gctx, input, query)
				if err != nil {
					failed.Add(1)
					line.Error = err.Error()
					zap.L().Error("batch query failed", zap.String("query", query), zap.Error(err))
				} else {
					succeeded.Add(1)
					line.Result = result
				}

				mu.Lock()
				defer mu.Unlock()
				return enc.Encode(line)
			})
		}

		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "batch processing")
		}

		zap.L().Info("batch complete",
			zap.Int64("succeeded", succeeded.Load()),
			zap.Int64("failed", failed.Load()),
		)
		return nil
	},
}

// loadQueries reads scenario queries from the first column of a CSV or XLSX
// file. A leading "query" header row is skipped.
func loadQueries(path string) ([]string, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSXRows(path)
	default:
		rows, err = readCSVRows(path)
	}
	if err != nil {
		return nil, err
	}

	var queries []string
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		q := strings.TrimSpace(row[0])
		if q == "" {
			continue
		}
		if i == 0 && strings.EqualFold(q, "query") {
			continue
		}
		queries = append(queries, q)
	}
	return queries, nil
}

func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open queries %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "read queries %s", path)
	}
	return rows, nil
}

func readXLSXRows(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open queries %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("no sheets in %s", path)
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		var cells []string
		for _, cell := range row.Cells {
			cells = append(cells, cell.String())
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func init() {
	batchCmd.Flags().StringVar(&batchQueriesPath, "queries", "", "path to CSV or XLSX file of queries (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of queries to process")
	_ = batchCmd.MarkFlagRequired("queries")
	rootCmd.AddCommand(batchCmd)
}

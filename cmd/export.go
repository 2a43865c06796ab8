package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/islamic-data/internal/export"
	"github.com/sells-group/islamic-data/internal/model"
	"github.com/sells-group/islamic-data/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export <category>",
	Short: "Export the stored records of a category to an XLSX workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category := args[0]
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = category + ".xlsx"
		}
		workers, _ := cmd.Flags().GetInt("workers")

		st := store.NewOSFileStore(cfg.Store.Root)
		docs, err := st.LoadAll(cmd.Context(), category, workers)
		if err != nil {
			return eris.Wrap(err, "export")
		}

		records := decodeRecords(docs)
		if len(records) == 0 {
			return eris.Errorf("export: no records stored for %q", category)
		}

		if err := export.WriteXLSX(out, category, records); err != nil {
			return eris.Wrap(err, "export")
		}
		fmt.Fprintf(os.Stderr, "Wrote %d %s records to %s\n", len(records), category, out)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("out", "", "output workbook path (default <category>.xlsx)")
	exportCmd.Flags().Int("workers", 8, "concurrent file reads")
	rootCmd.AddCommand(exportCmd)
}

// decodeRecords keeps the documents that decode as records, ordered by
// document name. Auxiliary documents such as link lists are skipped.
func decodeRecords(docs map[string]json.RawMessage) []model.Record {
	names := make([]string, 0, len(docs))
	for n := range docs {
		names = append(names, n)
	}
	sortNames(names)

	records := make([]model.Record, 0, len(names))
	for _, n := range names {
		var rec model.Record
		if err := json.Unmarshal(docs[n], &rec); err != nil || rec.ID == "" || rec.Fields == nil {
			zap.L().Debug("export: skipping non-record document", zap.String("name", n))
			continue
		}
		records = append(records, rec)
	}
	return records
}

// sortNames orders names numerically when every name is an integer (surah
// and name indexes), lexically otherwise.
func sortNames(names []string) {
	nums := make(map[string]int, len(names))
	for _, n := range names {
		v, err := strconv.Atoi(n)
		if err != nil {
			sort.Strings(names)
			return
		}
		nums[n] = v
	}
	sort.Slice(names, func(i, j int) bool { return nums[names[i]] < nums[names[j]] })
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/islamic-data/internal/extract"
	"github.com/sells-group/islamic-data/internal/model"
	"github.com/sells-group/islamic-data/internal/pipeline"
	"github.com/sells-group/islamic-data/internal/resolve"
	"github.com/sells-group/islamic-data/internal/store"
)

var surahCmd = &cobra.Command{
	Use:   "surah",
	Short: "Browse stored surahs",
}

var surahListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored surahs with their ASCII listing names",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st := store.NewOSFileStore(cfg.Store.Root)
		listing, err := loadSurahListing(cmd, st)
		if err != nil {
			return err
		}
		formatSurahListing(os.Stdout, listing)
		return nil
	},
}

var surahGetCmd = &cobra.Command{
	Use:   "get <id|name>",
	Short: "Print a stored surah by number or fuzzy name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st := store.NewOSFileStore(cfg.Store.Root)

		id := args[0]
		if _, err := strconv.Atoi(id); err != nil {
			listing, err := loadSurahListing(cmd, st)
			if err != nil {
				return err
			}
			match, err := resolveSurah(args[0], listing)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Matched %q (score %.1f)\n", match.Display, match.Score)
			id = match.Key
		}

		rec, err := st.ReadRecord(pipeline.CategorySurahs, id)
		if err != nil {
			return eris.Wrapf(err, "surah %s", id)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

func init() {
	surahListCmd.Flags().Int("workers", 8, "concurrent file reads")
	surahGetCmd.Flags().Int("workers", 8, "concurrent file reads")

	surahCmd.AddCommand(surahListCmd)
	surahCmd.AddCommand(surahGetCmd)
	rootCmd.AddCommand(surahCmd)
}

// surahEntry is one row of the surah listing.
type surahEntry struct {
	ID      string
	Name    string
	Listing string
	Status  model.Status
}

func loadSurahListing(cmd *cobra.Command, st *store.FileStore) ([]surahEntry, error) {
	workers, _ := cmd.Flags().GetInt("workers")
	docs, err := st.LoadAll(cmd.Context(), pipeline.CategorySurahs, workers)
	if err != nil {
		return nil, err
	}
	return surahListing(docs)
}

// surahListing decodes stored surah records into listing entries ordered
// by surah number.
func surahListing(docs map[string]json.RawMessage) ([]surahEntry, error) {
	entries := make([]surahEntry, 0, len(docs))
	for name, raw := range docs {
		var rec model.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, eris.Wrapf(err, "decode surah %s", name)
		}
		surahName := rec.String(extract.FieldSurahName)
		entries = append(entries, surahEntry{
			ID:      name,
			Name:    surahName,
			Listing: extract.ListingName(surahName),
			Status:  rec.Status,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, errA := strconv.Atoi(entries[i].ID)
		b, errB := strconv.Atoi(entries[j].ID)
		if errA != nil || errB != nil {
			return entries[i].ID < entries[j].ID
		}
		return a < b
	})
	return entries, nil
}

// resolveSurah matches query against the listing names; Match.Key is the
// surah ID.
func resolveSurah(query string, listing []surahEntry) (resolve.Match, error) {
	names := make(map[string]string, len(listing))
	for _, e := range listing {
		names[e.ID] = e.Listing
	}
	return resolve.ResolveKeys(query, names)
}

func formatSurahListing(w io.Writer, listing []surahEntry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Name", "Listing", "Status"})
	for _, e := range listing {
		t.AppendRow(table.Row{e.ID, e.Name, e.Listing, e.Status})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

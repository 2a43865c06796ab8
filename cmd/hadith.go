package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/islamic-data/internal/extract"
	"github.com/sells-group/islamic-data/internal/model"
	"github.com/sells-group/islamic-data/internal/pipeline"
	"github.com/sells-group/islamic-data/internal/resolve"
	"github.com/sells-group/islamic-data/internal/store"
)

var hadithCmd = &cobra.Command{
	Use:   "hadith",
	Short: "Browse downloaded hadith collections",
}

var hadithGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the stored collection best matching an author or book name",
	RunE: func(cmd *cobra.Command, _ []string) error {
		author, _ := cmd.Flags().GetString("author")
		limit, _ := cmd.Flags().GetInt("limit")

		st := store.NewOSFileStore(cfg.Store.Root)
		match, rec, err := lookupHadith(st, author)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Matched %q (score %.1f)\n", match.Display, match.Score)
		return formatHadithBook(os.Stdout, match.Display, rec, limit)
	},
}

func init() {
	hadithGetCmd.Flags().String("author", "", "author or collection name, matched fuzzily")
	hadithGetCmd.Flags().Int("limit", 10, "max hadiths to print (0 for all)")
	_ = hadithGetCmd.MarkFlagRequired("author")

	hadithCmd.AddCommand(hadithGetCmd)
	rootCmd.AddCommand(hadithCmd)
}

// lookupHadith resolves author against the stored link index and loads the
// matching book record.
func lookupHadith(st *store.FileStore, author string) (resolve.Match, *model.Record, error) {
	var links map[string]string
	if err := st.Read(pipeline.CategoryHadith, pipeline.HadithLinksName, &links); err != nil {
		return resolve.Match{}, nil, eris.Wrap(err, "hadith: no link index, run `extract hadith` first")
	}

	books := make(map[string]string, len(links))
	for book := range links {
		books[book] = book
	}
	match, err := resolve.ResolveKeys(author, books)
	if err != nil {
		return resolve.Match{}, nil, eris.Wrap(err, "hadith: resolve author")
	}

	rec, err := st.ReadRecord(pipeline.CategoryHadith, extract.HadithBookID(match.Key))
	if err != nil {
		return match, nil, eris.Wrapf(err, "hadith: read book %s", match.Key)
	}
	return match, rec, nil
}

// formatHadithBook prints up to limit hadiths of a stored book.
func formatHadithBook(w io.Writer, title string, rec *model.Record, limit int) error {
	payload, _ := rec.Fields[extract.FieldHadiths].(map[string]any)
	items, _ := payload["hadiths"].([]any)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"#", "Text"})
	for i, item := range items {
		if limit > 0 && i >= limit {
			break
		}
		h, _ := item.(map[string]any)
		t.AppendRow(table.Row{h["hadithnumber"], h["text"]})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}

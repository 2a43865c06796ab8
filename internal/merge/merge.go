// Package merge combines same-entity fragments from several sources into
// one canonical Record.
package merge

import (
	"sort"
	"strconv"

	"github.com/sells-group/islamic-data/internal/model"
	"github.com/sells-group/islamic-data/internal/resilience"
)

// Alignment declares how a multi-variant field is checked and shaped.
type Alignment struct {
	// CountField names the merged field whose length (list) or value
	// (integer) is the expected number of lines per variant.
	CountField string
	// Anchor is the one variant that also carries the Parallel fields.
	Anchor string
	// Parallel maps an output key to a merged list field zipped into the
	// anchor's entries.
	Parallel map[string]string
	// NumberField optionally names a list field holding per-line labels.
	NumberField string
	// NumberKey and TextKey name the label and text keys of each entry.
	NumberKey string
	TextKey   string
	// IndexBase is the first entry key.
	IndexBase int
}

// Plan declares the required sources of a category in application order
// and the alignment rules of its variant fields.
type Plan struct {
	Category   string
	Sources    []string
	Alignments map[string]Alignment
}

// Merge applies fragments in the plan's declared source order, not arrival
// order. The first applied fragment forms the base; later fragments add new
// keys or replace variant subkeys, never dropping a present key. A variant
// whose line count differs from the expected count is omitted and reported
// as an alignment error; the rest of the merge proceeds.
func Merge(plan Plan, entityID string, fragments []model.Fragment) (model.Record, []error) {
	rec := model.Record{
		ID:       entityID,
		Category: plan.Category,
		Status:   model.StatusPending,
		Sources:  []string{},
		Fields:   map[string]any{},
	}
	if len(fragments) == 0 {
		return rec, nil
	}

	applied := map[string]bool{}
	stubbed := false
	for _, frag := range ordered(plan.Sources, fragments) {
		if frag.Unavailable {
			rec.Unavailable = appendUnique(rec.Unavailable, frag.Source)
			continue
		}
		if frag.Stub {
			stubbed = true
		} else {
			applied[frag.Source] = true
		}
		rec.Sources = appendUnique(rec.Sources, frag.Source)
		layer(rec.Fields, frag.Fields)
	}

	var errs []error
	for _, field := range sortedKeys(plan.Alignments) {
		errs = append(errs, align(&rec, field, plan.Alignments[field])...)
	}

	rec.Status = model.StatusComplete
	if stubbed || len(errs) > 0 || len(rec.Unavailable) > 0 {
		rec.Status = model.StatusPartial
	}
	for _, src := range plan.Sources {
		if !applied[src] {
			rec.Status = model.StatusPartial
		}
	}
	return rec, errs
}

// ordered sorts fragments by the declared source order. Fragments from
// undeclared sources follow, sorted by source name; ties keep arrival order.
func ordered(sources []string, fragments []model.Fragment) []model.Fragment {
	rank := make(map[string]int, len(sources))
	for i, s := range sources {
		if _, ok := rank[s]; !ok {
			rank[s] = i
		}
	}
	out := append([]model.Fragment(nil), fragments...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, iok := rank[out[i].Source]
		rj, jok := rank[out[j].Source]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return out[i].Source < out[j].Source
		}
	})
	return out
}

// layer adds src onto dst. Absent keys are deep-copied in. When both sides
// hold variants the incoming variant subkeys replace the existing ones.
// Any other present key is kept as is.
func layer(dst, src map[string]any) {
	for k, v := range src {
		cur, ok := dst[k]
		if !ok {
			dst[k] = model.CloneValue(v)
			continue
		}
		curV, curOK := cur.(model.Variants)
		newV, newOK := v.(model.Variants)
		if curOK && newOK {
			for name, lines := range newV {
				curV[name] = append([]string(nil), lines...)
			}
		}
	}
}

func align(rec *model.Record, field string, a Alignment) []error {
	variants, ok := rec.Fields[field].(model.Variants)
	if !ok {
		return nil
	}
	want, ok := count(rec.Fields[a.CountField])
	if !ok {
		// Nothing to align against; the authoritative source is missing
		// and the record is already partial.
		return nil
	}

	textKey, numberKey := a.TextKey, a.NumberKey
	if textKey == "" {
		textKey = "text"
	}
	if numberKey == "" {
		numberKey = "number"
	}
	numbers, _ := rec.Fields[a.NumberField].([]string)

	var errs []error
	shaped := make(map[string]any, len(variants))
	for _, name := range sortedKeys(map[string][]string(variants)) {
		lines := variants[name]
		if len(lines) != want {
			err := resilience.Alignment(field, name, want, len(lines)).WithEntity(rec.ID)
			errs = append(errs, err)
			rec.Omitted = append(rec.Omitted, model.Omission{Field: field, Variant: name, Reason: err.Error()})
			continue
		}

		entries := make(map[string]any, len(lines))
		for i, line := range lines {
			entry := map[string]any{textKey: line}
			if i < len(numbers) {
				entry[numberKey] = numbers[i]
			} else {
				entry[numberKey] = strconv.Itoa(i + 1)
			}
			if name == a.Anchor {
				for out, src := range a.Parallel {
					entry[out] = nth(rec.Fields[src], i)
				}
			}
			entries[strconv.Itoa(a.IndexBase+i)] = entry
		}
		shaped[name] = entries
	}
	rec.Fields[field] = shaped
	return errs
}

func count(v any) (int, bool) {
	switch t := v.(type) {
	case []string:
		return len(t), true
	case []any:
		return len(t), true
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	}
	return 0, false
}

func nth(v any, i int) string {
	switch t := v.(type) {
	case []string:
		if i < len(t) {
			return t[i]
		}
	case []any:
		if i < len(t) {
			s, _ := t[i].(string)
			return s
		}
	}
	return ""
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

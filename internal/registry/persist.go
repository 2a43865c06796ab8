package registry

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/rotisserie/eris"
)

// Location of the persisted facts registry.
const (
	FactsCategory = "facts"
	FactsName     = "islam_facts"
)

// Storage is the document store a registry is persisted to.
type Storage interface {
	Exists(category, name string) (bool, error)
	ReadRaw(category, name string) ([]byte, error)
	Write(category, name string, v any) error
}

// Load reads a persisted registry. A missing document yields an empty one.
// Both the list form and the legacy {"entry": null} object form are read;
// object keys come back sorted.
func Load(st Storage, category, name string) (*Registry, error) {
	ok, err := st.Exists(category, name)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: stat %s/%s", category, name)
	}
	if !ok {
		return New(), nil
	}

	raw, err := st.ReadRaw(category, name)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read %s/%s", category, name)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return New(), nil
	}

	if raw[0] == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, eris.Wrapf(err, "registry: decode %s/%s", category, name)
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return New(keys...), nil
	}

	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, eris.Wrapf(err, "registry: decode %s/%s", category, name)
	}
	return New(items...), nil
}

// Save unions reg into the persisted registry, persisted entries first, and
// rewrites the document. It returns the union.
func Save(st Storage, category, name string, reg *Registry) (*Registry, error) {
	union, err := Load(st, category, name)
	if err != nil {
		return nil, err
	}
	union.Union(reg)
	if err := st.Write(category, name, union.Items()); err != nil {
		return nil, eris.Wrapf(err, "registry: write %s/%s", category, name)
	}
	return union, nil
}

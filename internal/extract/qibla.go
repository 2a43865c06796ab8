package extract

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/islamic-data/internal/model"
)

// DefaultBearing is the qibla direction used when the upstream status is
// not "OK".
const DefaultBearing = 68.92406695044804

// Qibla field names.
const (
	FieldCountry   = "country"
	FieldLatitude  = "latitude"
	FieldLongitude = "longitude"
	FieldQiblaDir  = "qibla_dir"
	FieldGeometry  = "geometry"
	FieldLocatedBy = "located_by"
)

// Countries turns the country PDF lines into a de-duplicated list sorted
// by first character. Lines sharing a first character keep their PDF order.
func Countries(lines []string) []string {
	var out []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := []rune(out[i]), []rune(out[j])
		return ri[0] < rj[0]
	})

	seen := make(map[string]struct{}, len(out))
	uniq := out[:0]
	for _, c := range out {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		uniq = append(uniq, c)
	}
	return uniq
}

// QiblaEndpoint is the bearing endpoint for a coordinate pair.
func QiblaEndpoint(lat, lng float64) string {
	return "qibla/" + strconv.FormatFloat(lat, 'f', -1, 64) + "/" + strconv.FormatFloat(lng, 'f', -1, 64)
}

// QiblaBearing reads data.direction from the bearing response when status
// is "OK" and returns fallback otherwise.
func QiblaBearing(body []byte, fallback float64) float64 {
	if !gjson.ValidBytes(body) {
		return fallback
	}
	res := gjson.GetManyBytes(body, "status", "data.direction")
	if res[0].String() != "OK" || !res[1].Exists() {
		return fallback
	}
	return res[1].Float()
}

// PointGeometry encodes lng/lat as a GeoJSON point object.
func PointGeometry(lat, lng float64) (map[string]any, error) {
	pt := geom.NewPointFlat(geom.XY, []float64{lng, lat})
	raw, err := geojson.Marshal(pt)
	if err != nil {
		return nil, eris.Wrap(err, "extract: encode point")
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, eris.Wrap(err, "extract: decode point")
	}
	return out, nil
}

// QiblaFragment builds the single-source fragment for one country.
func QiblaFragment(country string, lat, lng, bearing float64, locatedBy string) (model.Fragment, error) {
	point, err := PointGeometry(lat, lng)
	if err != nil {
		return model.Fragment{}, err
	}
	frag := model.NewFragment(country, SourceQibla)
	frag.Fields[FieldCountry] = country
	frag.Fields[FieldLatitude] = lat
	frag.Fields[FieldLongitude] = lng
	frag.Fields[FieldQiblaDir] = bearing
	frag.Fields[FieldLocatedBy] = locatedBy
	frag.Fields[FieldGeometry] = point
	return frag, nil
}

package normalize

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/models"
)

// aliases maps each canonical column to the historical and localized
// field names seen across dataset versions. A value already present
// under the canonical name always wins; otherwise the first listed
// alias present in the record is used.
var aliases = map[string][]string{
	"lon":       {"longitude", "lng", "long", "經度", "coordinatelongitude"},
	"lat":       {"latitude", "緯度", "coordinatelatitude"},
	"pm25":      {"pm2_5", "pm2.5", "pm2_5_avg", "細懸浮微粒"},
	"temp":      {"temperature", "temp_c", "溫度"},
	"humidity":  {"rh", "hum", "濕度"},
	"district":  {"行政區", "area", "town"},
	"name":      {"sitename", "site_name", "點位", "landmark"},
	"time":      {"timestamp", "datatime", "datetime", "測定時間", "publishtime", "publish_time"},
	"device_id": {"deviceid", "device", "device_no", "station_id", "設備編號"},
}

// Normalize converts raw records into canonical readings, discarding any
// record without a usable lon/lat/pm25 triple. The dropped count is
// returned so callers can log it once instead of per row.
func Normalize(records []map[string]any) ([]models.Reading, int) {
	out := make([]models.Reading, 0, len(records))
	dropped := 0

	for _, rec := range records {
		idx := lowerIndex(rec)

		lon, lonOK := floatField(idx, "lon")
		lat, latOK := floatField(idx, "lat")
		pm25, pmOK := floatField(idx, "pm25")
		if !lonOK || !latOK || !pmOK {
			dropped++
			continue
		}

		r := models.Reading{Lon: lon, Lat: lat, PM25: pm25}

		if t, ok := floatField(idx, "temp"); ok {
			r.Temp = &t
		}
		if h, ok := floatField(idx, "humidity"); ok {
			r.Humidity = &h
		}

		r.District = stringField(idx, "district")
		if r.District == "" {
			r.District = models.UnspecifiedDistrict
		}
		r.Name = stringField(idx, "name")
		if r.Name == "" {
			r.Name = models.UnnamedSite
		}
		r.DeviceID = stringField(idx, "device_id")

		r.Time = stringField(idx, "time")
		if r.Time != "" {
			r.ObservedAt = ParseTime(r.Time)
		}

		out = append(out, r)
	}

	return out, dropped
}

// lowerIndex folds record keys to trimmed lower case. When two keys
// collide after folding, the lexicographically first wins, keeping the
// result deterministic.
func lowerIndex(rec map[string]any) map[string]any {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	idx := make(map[string]any, len(rec))
	for _, k := range keys {
		lk := strings.ToLower(strings.TrimSpace(k))
		if _, ok := idx[lk]; !ok {
			idx[lk] = rec[k]
		}
	}
	return idx
}

// resolve finds the raw value for a canonical column: the canonical name
// itself first, then its aliases in table order.
func resolve(idx map[string]any, target string) (any, bool) {
	if v, ok := idx[target]; ok {
		return v, true
	}
	for _, a := range aliases[target] {
		if v, ok := idx[a]; ok {
			return v, true
		}
	}
	return nil, false
}

func floatField(idx map[string]any, target string) (float64, bool) {
	v, ok := resolve(idx, target)
	if !ok {
		return 0, false
	}
	return floatValue(v)
}

func stringField(idx map[string]any, target string) string {
	v, ok := resolve(idx, target)
	if !ok {
		return ""
	}
	s, _ := stringValue(v)
	return s
}

// floatValue coerces a raw JSON scalar to a finite float64. Strings are
// trimmed and parsed; anything non-numeric (or NaN/Inf) counts as
// missing rather than an error.
func floatValue(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// stringValue coerces a raw JSON scalar to a trimmed string; numbers are
// formatted without a decimal tail so identifiers survive intact.
func stringValue(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case json.Number:
		return x.String(), true
	default:
		return "", false
	}
}

// timeLayouts are tried in order when parsing observation times.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTime parses an observation timestamp against the known layouts,
// in local time when the value carries no zone. Unrecognized input
// yields nil.
func ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t
		}
	}
	return nil
}

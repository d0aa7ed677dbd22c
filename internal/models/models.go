package models

import "time"

// Fallback labels for records that arrive without a district or site name.
const (
	UnspecifiedDistrict = "(unspecified district)"
	UnnamedSite         = "(unnamed site)"
)

// LocalTimeLayout is the wall-clock format used for human-facing
// timestamps (snapshot metadata, "latest observation" displays).
const LocalTimeLayout = "2006-01-02 15:04:05"

// Reading is one canonical micro-sensor observation after schema
// normalization. Lon, Lat and PM25 are always finite; optional fields
// stay nil or empty when the source record lacked them.
type Reading struct {
	DeviceID string   `json:"device_id,omitempty"`
	Lon      float64  `json:"lon"`
	Lat      float64  `json:"lat"`
	PM25     float64  `json:"pm25"`
	Temp     *float64 `json:"temp,omitempty"`
	Humidity *float64 `json:"humidity,omitempty"`
	District string   `json:"district"`
	Name     string   `json:"name"`
	Time     string   `json:"time,omitempty"`

	// ObservedAt is the best-effort parse of Time; nil when Time is
	// absent or in an unrecognized layout.
	ObservedAt *time.Time `json:"observed_at,omitempty"`
}

// HasDistrict reports whether the reading carries a real district name
// rather than the fallback label.
func (r Reading) HasDistrict() bool {
	return r.District != "" && r.District != UnspecifiedDistrict
}

// FetchMeta records the provenance of a dataset: where it came from,
// when it was fetched, and how much the normalizer discarded.
type FetchMeta struct {
	SourceURL    string   `json:"source_url,omitempty"`
	FetchedAt    string   `json:"fetched_at,omitempty"`
	RecordCount  int      `json:"record_count"`
	DroppedCount int      `json:"dropped_count"`
	FromSnapshot bool     `json:"from_snapshot"`
	Stale        bool     `json:"stale,omitempty"`
	StaleReason  string   `json:"stale_reason,omitempty"`
	Attempts     []string `json:"attempts,omitempty"`

	// LoadedAt is when this dataset entered memory; last resort for
	// the "latest observation" display when readings carry no times.
	LoadedAt time.Time `json:"-"`
}

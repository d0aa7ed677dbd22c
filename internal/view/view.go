package view

import (
	"sort"

	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/airquality"
	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/geo"
	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/models"
)

// Filter selects the rows a view operates on.
type Filter struct {
	// District narrows the view to one district; empty means citywide.
	District string
	// OverThreshold keeps only rows exceeding the acceptable PM2.5 range.
	OverThreshold bool
}

// Apply returns the readings passing the filter, preserving order. The
// input slice is never modified.
func (f Filter) Apply(readings []models.Reading) []models.Reading {
	out := make([]models.Reading, 0, len(readings))
	for _, r := range readings {
		if f.District != "" && r.District != f.District {
			continue
		}
		if f.OverThreshold && r.PM25 <= airquality.OverThreshold {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Options shape the derived display fields.
type Options struct {
	// Scale selects the band table used for levels and colors.
	Scale airquality.Scale
	// ScaleRadius grows point radii with PM2.5; off means a fixed size.
	ScaleRadius bool
	// TopN caps the table length; zero or negative means no cap.
	TopN int
}

// Row is one map/table entry: the reading plus its derived display
// attributes. The derived fields are pure functions of PM25.
type Row struct {
	models.Reading
	Level  string           `json:"level"`
	Advice string           `json:"advice"`
	Color  airquality.Color `json:"color"`
	Radius float64          `json:"radius"`
}

// BuildTable derives display rows for the readings, sorted by PM2.5
// descending (stable, so equal values keep their input order) and capped
// at opts.TopN.
func BuildTable(readings []models.Reading, opts Options) []Row {
	rows := make([]Row, 0, len(readings))
	for _, r := range readings {
		lv := opts.Scale.Classify(r.PM25)

		radius := airquality.FixedRadius
		if opts.ScaleRadius {
			radius = airquality.Radius(r.PM25)
		}

		rows = append(rows, Row{
			Reading: r,
			Level:   lv.Label,
			Advice:  lv.Advice,
			Color:   lv.Color,
			Radius:  radius,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].PM25 > rows[j].PM25
	})

	if opts.TopN > 0 && len(rows) > opts.TopN {
		rows = rows[:opts.TopN]
	}
	return rows
}

// BoundsOf computes the geographic bounding box of the readings.
func BoundsOf(readings []models.Reading) (geo.Bounds, bool) {
	if len(readings) == 0 {
		return geo.Bounds{}, false
	}

	b := geo.Bounds{
		MinLat: readings[0].Lat, MaxLat: readings[0].Lat,
		MinLon: readings[0].Lon, MaxLon: readings[0].Lon,
	}
	for _, r := range readings[1:] {
		if r.Lat < b.MinLat {
			b.MinLat = r.Lat
		}
		if r.Lat > b.MaxLat {
			b.MaxLat = r.Lat
		}
		if r.Lon < b.MinLon {
			b.MinLon = r.Lon
		}
		if r.Lon > b.MaxLon {
			b.MaxLon = r.Lon
		}
	}
	return b, true
}

// ViewportFor fits the default viewport to the readings; ok is false
// when there are no points to fit.
func ViewportFor(readings []models.Reading) (geo.Viewport, bool) {
	b, ok := BoundsOf(readings)
	if !ok {
		return geo.Viewport{}, false
	}
	return geo.Fit(b), true
}

package view

import (
	"math"
	"sort"
	"time"

	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/airquality"
	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/models"
)

// DistrictAggregate summarizes the readings of one district.
type DistrictAggregate struct {
	District string  `json:"district"`
	Count    int     `json:"count"`
	Mean     float64 `json:"mean_pm25"`
	Max      float64 `json:"max_pm25"`
	Median   float64 `json:"median_pm25"`
	// Level is the band of the district's worst reading.
	Level string `json:"level"`
}

// AggregateDistricts groups readings by district and computes per-group
// PM2.5 statistics, sorted by max descending. Groups tie on max in their
// first-appearance order. Rows without a real district name are left
// out of the grouping entirely.
func AggregateDistricts(readings []models.Reading, scale airquality.Scale) []DistrictAggregate {
	values := make(map[string][]float64)
	order := make([]string, 0)

	for _, r := range readings {
		if !r.HasDistrict() {
			continue
		}
		if _, ok := values[r.District]; !ok {
			order = append(order, r.District)
		}
		values[r.District] = append(values[r.District], r.PM25)
	}

	out := make([]DistrictAggregate, 0, len(order))
	for _, district := range order {
		vs := values[district]
		agg := DistrictAggregate{
			District: district,
			Count:    len(vs),
			Mean:     mean(vs),
			Max:      maxOf(vs),
			Median:   quantile(vs, 0.5),
		}
		agg.Level = scale.Classify(agg.Max).Label
		out = append(out, agg)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Max > out[j].Max
	})
	return out
}

// DetailedStats are the extra numbers shown in the professional view.
type DetailedStats struct {
	MeanPM25           float64 `json:"mean_pm25"`
	P75PM25            float64 `json:"p75_pm25"`
	OverThresholdCount int     `json:"over_threshold_count"`
}

// Summary is the KPI block for the current view.
type Summary struct {
	Count        int     `json:"count"`
	MedianPM25   float64 `json:"median_pm25"`
	MedianLevel  string  `json:"median_level"`
	MedianAdvice string  `json:"median_advice"`
	MaxPM25      float64 `json:"max_pm25"`

	// LatestTime is the freshest timestamp we can attribute to the data;
	// LatestTimeSource says which fallback produced it.
	LatestTime       string `json:"latest_time,omitempty"`
	LatestTimeSource string `json:"latest_time_source,omitempty"`

	Detailed *DetailedStats `json:"detailed,omitempty"`
}

// BuildSummary computes the KPIs for the readings. An empty view yields
// zero-valued metrics rather than an error.
func BuildSummary(readings []models.Reading, meta models.FetchMeta, scale airquality.Scale, detailed bool) Summary {
	s := Summary{Count: len(readings)}

	values := make([]float64, 0, len(readings))
	for _, r := range readings {
		values = append(values, r.PM25)
	}

	if len(values) > 0 {
		s.MedianPM25 = quantile(values, 0.5)
		s.MaxPM25 = maxOf(values)
		lv := scale.Classify(s.MedianPM25)
		s.MedianLevel = lv.Label
		s.MedianAdvice = lv.Advice
	}

	s.LatestTime, s.LatestTimeSource = latestTime(readings, meta)

	if detailed {
		d := &DetailedStats{}
		if len(values) > 0 {
			d.MeanPM25 = mean(values)
			d.P75PM25 = quantile(values, 0.75)
		}
		for _, v := range values {
			if v > airquality.OverThreshold {
				d.OverThresholdCount++
			}
		}
		s.Detailed = d
	}

	return s
}

// latestTime picks the freshest timestamp for display, preferring real
// observation times, then the fetch/snapshot time, then the load time.
func latestTime(readings []models.Reading, meta models.FetchMeta) (string, string) {
	var newest *time.Time
	for _, r := range readings {
		if r.ObservedAt == nil {
			continue
		}
		if newest == nil || r.ObservedAt.After(*newest) {
			newest = r.ObservedAt
		}
	}
	if newest != nil {
		return newest.Format(models.LocalTimeLayout), "observations"
	}
	if meta.FetchedAt != "" {
		return meta.FetchedAt, "snapshot"
	}
	if !meta.LoadedAt.IsZero() {
		return meta.LoadedAt.Format(models.LocalTimeLayout), "loaded"
	}
	return "", ""
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// quantile returns the q-quantile (0..1) using linear interpolation
// between closest ranks, the same scheme the district tables have always
// used.
func quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

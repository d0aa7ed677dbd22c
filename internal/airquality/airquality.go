package airquality

import (
	"encoding/json"
	"fmt"
	"math"
)

// OverThreshold is the PM2.5 value (µg/m³) above which a reading counts
// as exceeding the acceptable range; it is the Moderate band's upper bound.
const OverThreshold = 35.4

// Color is an RGBA display color.
type Color [4]uint8

// Level is one severity band: an inclusive upper PM2.5 bound plus the
// advisory text and color shown for readings that fall in the band.
type Level struct {
	Max    float64 `json:"max_pm25"`
	Label  string  `json:"label"`
	Advice string  `json:"advice"`
	Color  Color   `json:"color"`
}

// MarshalJSON renders the open-ended band's bound as null; JSON has no
// Inf or NaN literals.
func (l Level) MarshalJSON() ([]byte, error) {
	out := struct {
		Max    *float64 `json:"max_pm25"`
		Label  string   `json:"label"`
		Advice string   `json:"advice"`
		Color  Color    `json:"color"`
	}{Label: l.Label, Advice: l.Advice, Color: l.Color}

	if !math.IsNaN(l.Max) && !math.IsInf(l.Max, 0) {
		out.Max = &l.Max
	}
	return json.Marshal(out)
}

// Unknown is reported for values the scale cannot place (negative or NaN).
var Unknown = Level{
	Max:    math.NaN(),
	Label:  "Unknown",
	Advice: "No valid PM2.5 value for this site.",
	Color:  Color{120, 120, 120, 160},
}

var sixBand = []Level{
	{Max: 15.4, Label: "Good", Advice: "Air quality is good; outdoor activity is fine.", Color: Color{0, 200, 120, 180}},
	{Max: 35.4, Label: "Moderate", Advice: "Acceptable; unusually sensitive people should watch for symptoms.", Color: Color{240, 200, 0, 180}},
	{Max: 54.4, Label: "Sensitive-groups caution", Advice: "Sensitive groups should cut back on prolonged outdoor exertion.", Color: Color{255, 140, 0, 180}},
	{Max: 150.4, Label: "Unhealthy", Advice: "Everyone should reduce outdoor activity; consider wearing a mask.", Color: Color{230, 60, 60, 180}},
	{Max: 250.4, Label: "Very unhealthy", Advice: "Avoid outdoor exertion; stay indoors when possible.", Color: Color{150, 0, 200, 180}},
	{Max: math.Inf(1), Label: "Hazardous", Advice: "Stay indoors and keep air filtration running.", Color: Color{120, 60, 0, 180}},
}

// fourBand collapses the three worst bands into a single open-ended
// Unhealthy band for compact legends.
var fourBand = []Level{
	sixBand[0],
	sixBand[1],
	sixBand[2],
	{Max: math.Inf(1), Label: sixBand[3].Label, Advice: sixBand[3].Advice, Color: sixBand[3].Color},
}

// Scale selects how many severity bands are exposed to the viewer.
type Scale int

const (
	// SixBand is the canonical scale.
	SixBand Scale = 6
	// FourBand is the compact display variant.
	FourBand Scale = 4
)

// ParseScale converts a configuration value ("4" or "6") into a Scale.
func ParseScale(s string) (Scale, error) {
	switch s {
	case "4":
		return FourBand, nil
	case "6", "":
		return SixBand, nil
	default:
		return SixBand, fmt.Errorf("invalid band scale %q (want 4 or 6)", s)
	}
}

// Levels returns the ordered band table for this scale, worst band last.
func (s Scale) Levels() []Level {
	if s == FourBand {
		return fourBand
	}
	return sixBand
}

// Classify places a PM2.5 value on this scale. Every non-negative value
// lands in exactly one band; negative or NaN values yield Unknown.
func (s Scale) Classify(pm25 float64) Level {
	if math.IsNaN(pm25) || pm25 < 0 {
		return Unknown
	}
	lvls := s.Levels()
	for _, lv := range lvls {
		if pm25 <= lv.Max {
			return lv
		}
	}
	return lvls[len(lvls)-1]
}

// Classify places a PM2.5 value on the canonical six-band scale.
func Classify(pm25 float64) Level {
	return SixBand.Classify(pm25)
}

// Display radius bounds in projected meters.
const (
	minRadius = 40.0
	maxRadius = 180.0

	// FixedRadius is used for every point when radius scaling is off.
	FixedRadius = 60.0
)

// Radius maps a PM2.5 value to a display radius that grows with the
// square root of the value and saturates at the upper bound.
func Radius(pm25 float64) float64 {
	if math.IsNaN(pm25) || pm25 < 0 {
		return minRadius
	}
	r := minRadius + 8*math.Sqrt(pm25)
	if r > maxRadius {
		return maxRadius
	}
	return r
}

package geo

import "math"

// Zoom limits for the fitted viewport.
const (
	MinZoom = 8.0
	MaxZoom = 14.0

	// CloseUpZoom is used when the bounding box collapses to a point.
	CloseUpZoom = 14.0
)

// Default viewport geometry assumed when the caller has no real numbers.
const (
	DefaultWidthPx  = 1280.0
	DefaultHeightPx = 720.0
	DefaultPadding  = 1.2
)

const (
	tileSize       = 256.0
	maxMercatorLat = 85.0

	// Spans below this many degrees on both axes are treated as a
	// single point rather than fed into the zoom computation.
	degenerateSpan = 1e-4
)

// Bounds is a geographic bounding box in degrees.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Viewport is a map camera position: center coordinates plus a
// Web-Mercator zoom level.
type Viewport struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Zoom float64 `json:"zoom"`
}

// mercatorY projects a latitude in degrees onto the Web-Mercator y axis,
// clamping to ±85° so the projection stays finite near the poles.
func mercatorY(lat float64) float64 {
	if lat > maxMercatorLat {
		lat = maxMercatorLat
	}
	if lat < -maxMercatorLat {
		lat = -maxMercatorLat
	}
	rad := lat * math.Pi / 180
	return math.Log(math.Tan(math.Pi/4 + rad/2))
}

// FitViewport computes the center and zoom that fit bounds inside a
// viewport of widthPx×heightPx pixels, leaving padding (>1) around the
// points. The zoom is clamped to [MinZoom, MaxZoom]; a bounding box that
// is degenerate on both axes yields CloseUpZoom directly.
func FitViewport(b Bounds, widthPx, heightPx, padding float64) Viewport {
	vp := Viewport{
		Lat: (b.MinLat + b.MaxLat) / 2,
		Lon: (b.MinLon + b.MaxLon) / 2,
	}

	latSpan := math.Abs(b.MaxLat - b.MinLat)
	lonSpan := math.Abs(b.MaxLon - b.MinLon)
	if latSpan < degenerateSpan && lonSpan < degenerateSpan {
		vp.Zoom = CloseUpZoom
		return vp
	}

	if widthPx <= 0 {
		widthPx = DefaultWidthPx
	}
	if heightPx <= 0 {
		heightPx = DefaultHeightPx
	}
	if padding <= 0 {
		padding = DefaultPadding
	}

	latFraction := math.Abs(mercatorY(b.MaxLat)-mercatorY(b.MinLat)) / (2 * math.Pi)
	lonFraction := lonSpan / 360

	scaleY := (heightPx / tileSize) / latFraction
	scaleX := (widthPx / tileSize) / lonFraction

	zoom := math.Log2(math.Min(scaleX, scaleY) / padding)
	if zoom < MinZoom {
		zoom = MinZoom
	}
	if zoom > MaxZoom {
		zoom = MaxZoom
	}
	vp.Zoom = zoom
	return vp
}

// Fit is FitViewport with the default viewport geometry.
func Fit(b Bounds) Viewport {
	return FitViewport(b, DefaultWidthPx, DefaultHeightPx, DefaultPadding)
}

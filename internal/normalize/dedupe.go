package normalize

import "github.com/wyhuang-tw/taichung-airmicro-viewer/internal/models"

// Dedupe collapses the table to one reading per device: the one with the
// latest parsed observation time, a timed reading beating untimed ones,
// first-seen winning ties. Readings without a device id always survive.
// Each survivor keeps the position of its device's first occurrence, so
// running Dedupe on its own output is a no-op.
func Dedupe(readings []models.Reading) []models.Reading {
	out := make([]models.Reading, 0, len(readings))
	seen := make(map[string]int, len(readings))

	for _, r := range readings {
		if r.DeviceID == "" {
			out = append(out, r)
			continue
		}
		i, ok := seen[r.DeviceID]
		if !ok {
			seen[r.DeviceID] = len(out)
			out = append(out, r)
			continue
		}
		if laterThan(r, out[i]) {
			out[i] = r
		}
	}
	return out
}

// laterThan reports whether a should replace b: only when a carries a
// strictly later parsed time. An untimed reading never displaces a
// timed one.
func laterThan(a, b models.Reading) bool {
	if a.ObservedAt == nil {
		return false
	}
	if b.ObservedAt == nil {
		return true
	}
	return a.ObservedAt.After(*b.ObservedAt)
}

package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/models"
)

func timedReading(device, observed string, pm25 float64) models.Reading {
	return models.Reading{
		DeviceID:   device,
		PM25:       pm25,
		Time:       observed,
		ObservedAt: ParseTime(observed),
	}
}

func TestDedupeKeepsLatestPerDevice(t *testing.T) {
	in := []models.Reading{
		timedReading("A", "2024-06-01 10:00:00", 1),
		timedReading("B", "2024-06-01 10:00:00", 2),
		timedReading("A", "2024-06-01 12:00:00", 3),
		timedReading("A", "2024-06-01 11:00:00", 4),
	}

	got := Dedupe(in)
	require.Len(t, got, 2)

	// A's survivor holds the first-seen slot with the latest values.
	assert.Equal(t, "A", got[0].DeviceID)
	assert.Equal(t, 3.0, got[0].PM25)
	assert.Equal(t, "B", got[1].DeviceID)
}

func TestDedupeTimedBeatsUntimed(t *testing.T) {
	in := []models.Reading{
		{DeviceID: "A", PM25: 1},
		timedReading("A", "2024-06-01 08:00:00", 2),
	}
	got := Dedupe(in)
	require.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].PM25)

	// Untimed never displaces timed, whichever comes first.
	in = []models.Reading{
		timedReading("A", "2024-06-01 08:00:00", 2),
		{DeviceID: "A", PM25: 1},
	}
	got = Dedupe(in)
	require.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].PM25)
}

func TestDedupeAllUntimedKeepsFirst(t *testing.T) {
	in := []models.Reading{
		{DeviceID: "A", PM25: 1},
		{DeviceID: "A", PM25: 2},
		{DeviceID: "A", PM25: 3},
	}

	got := Dedupe(in)
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].PM25)
}

func TestDedupeEqualTimesKeepFirst(t *testing.T) {
	in := []models.Reading{
		timedReading("A", "2024-06-01 10:00:00", 1),
		timedReading("A", "2024-06-01 10:00:00", 2),
	}

	got := Dedupe(in)
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].PM25)
}

func TestDedupeMissingDeviceIDAlwaysSurvives(t *testing.T) {
	in := []models.Reading{
		{PM25: 1},
		{PM25: 2},
		timedReading("A", "2024-06-01 10:00:00", 3),
		{PM25: 4},
	}

	got := Dedupe(in)
	assert.Len(t, got, 4)
}

func TestDedupeIdempotent(t *testing.T) {
	in := []models.Reading{
		timedReading("A", "2024-06-01 10:00:00", 1),
		{DeviceID: "B", PM25: 2},
		timedReading("A", "2024-06-01 12:00:00", 3),
		{PM25: 4},
		timedReading("B", "2024-06-01 09:00:00", 5),
	}

	once := Dedupe(in)
	twice := Dedupe(once)
	assert.Equal(t, once, twice)
}

func TestDedupeEmptyInput(t *testing.T) {
	got := Dedupe(nil)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

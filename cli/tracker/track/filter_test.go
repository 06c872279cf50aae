package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// pt строит точку с шагом примерно lonOffsetKm километров по долготе от базы.
func pt(tm string, lonOffsetKm float64) TrackPoint {
	// На широте Волово 0.01° долготы ≈ 0.683 км.
	return TrackPoint{
		Time:      tm,
		Latitude:  52.036242,
		Longitude: 37.887744 + lonOffsetKm/0.683*0.01,
	}
}

func TestFilterJumpsShortSeriesUntouched(t *testing.T) {
	kept, stats := FilterJumps(nil, DefaultMaxJumpKm, DefaultMaxSpeedKmh)
	assert.Empty(t, kept)
	assert.Equal(t, FilterStats{}, stats)

	one := []TrackPoint{pt("2026-02-01 10:00:00", 0)}
	kept, stats = FilterJumps(one, DefaultMaxJumpKm, DefaultMaxSpeedKmh)
	assert.Len(t, kept, 1)
	assert.Equal(t, FilterStats{Original: 1, Kept: 1}, stats)
}

func TestFilterJumpsRejectsLongJump(t *testing.T) {
	points := []TrackPoint{
		pt("2026-02-01 10:00:00", 0),
		pt("2026-02-01 10:01:00", 2.0), // скачок 2 км при пороге 1 км
		pt("2026-02-01 10:02:00", 0.3),
	}

	kept, stats := FilterJumps(points, 1.0, DefaultMaxSpeedKmh)
	assert.Equal(t, FilterStats{Original: 3, Kept: 2, Removed: 1}, stats)
	if assert.Len(t, kept, 2) {
		assert.Equal(t, points[0].Time, kept[0].Time)
		assert.Equal(t, points[2].Time, kept[1].Time)
	}
}

func TestFilterJumpsBurstOfOutliersAbsorbed(t *testing.T) {
	// Серия подряд идущих сбойных фиксов: каждая сравнивается с последней
	// принятой точкой, а не с предыдущей сбойной, поэтому остаются только
	// первая точка и валидная рядом с ней.
	points := []TrackPoint{
		pt("2026-02-01 10:00:00", 0),
		pt("2026-02-01 10:01:00", 5.0),
		pt("2026-02-01 10:02:00", 5.2),
		pt("2026-02-01 10:03:00", 5.4),
		pt("2026-02-01 10:04:00", 0.2),
	}

	kept, stats := FilterJumps(points, 1.0, DefaultMaxSpeedKmh)
	assert.Equal(t, FilterStats{Original: 5, Kept: 2, Removed: 3}, stats)
	if assert.Len(t, kept, 2) {
		assert.Equal(t, "2026-02-01 10:00:00", kept[0].Time)
		assert.Equal(t, "2026-02-01 10:04:00", kept[1].Time)
	}
}

func TestFilterJumpsRejectsBySpeed(t *testing.T) {
	// 0.9 км за 10 секунд — 324 км/ч: дистанция в пороге, скорость нет.
	points := []TrackPoint{
		pt("2026-02-01 10:00:00", 0),
		pt("2026-02-01 10:00:10", 0.9),
	}

	kept, _ := FilterJumps(points, 1.0, 180.0)
	assert.Len(t, kept, 1)

	// Тот же сдвиг за 10 минут проходит.
	points[1].Time = "2026-02-01 10:10:00"
	kept, _ = FilterJumps(points, 1.0, 180.0)
	assert.Len(t, kept, 2)
}

func TestFilterJumpsSpeedSkippedWithoutElapsedTime(t *testing.T) {
	// Одинаковое время: проверка скорости не применяется, решает дистанция.
	points := []TrackPoint{
		pt("2026-02-01 10:00:00", 0),
		pt("2026-02-01 10:00:00", 0.5),
	}

	kept, _ := FilterJumps(points, 1.0, 180.0)
	assert.Len(t, kept, 2)
}

package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/daniil11ru/volovo/cli/tracker/repository"
	"github.com/daniil11ru/volovo/cli/tracker/track"
)

var reportFence = track.Geofence{Latitude: 52.036242, Longitude: 37.887744, RadiusKm: 0.02}

// loadReportTrack наполняет источник серией из двух рейсов от пескобазы:
// короткий технологический заезд (~0.2 км), длинный рейс (~1.2 км) и один
// сбойный фикс в 5 км от трека.
func loadReportTrack(t *testing.T, src *fakeSource) {
	// 0.003° долготы на широте базы — примерно 0.2 км.
	lons := []float64{
		0,     // внутри зоны: вход 1
		0.003, // снаружи
		0,     // внутри зоны: вход 2
		0.003, 0.006, 0.009, 0.012, 0.015, 0.018, // длинный рейс
		0.018 + 0.073, // скачок ~5 км, отсекается фильтром
	}

	points := make([]track.TrackPoint, 0, len(lons))
	for i, dlon := range lons {
		points = append(points, track.TrackPoint{
			OID:       182,
			Time:      fmt.Sprintf("2026-02-01 10:%02d:00", i),
			Latitude:  reportFence.Latitude,
			Longitude: reportFence.Longitude + dlon,
		})
	}

	_, inserted, err := src.AddTrackPoints(points)
	assert.NoError(t, err)
	assert.Equal(t, int64(len(lons)), inserted)
}

func newReport(src *fakeSource) *Report {
	return &Report{Repository: &repository.Primary{Source: src}, Fence: reportFence}
}

func TestSummarize(t *testing.T) {
	src := newFakeSource()
	loadReportTrack(t, src)

	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	sum, err := newReport(src).Summarize(182, &from, &to, DefaultFilterConfig())
	assert.NoError(t, err)

	assert.Equal(t, int32(182), sum.OID)
	assert.Equal(t, "2026-02-01 00:00:00", sum.TmFrom)
	assert.Equal(t, 10, sum.PointsCnt)
	assert.Equal(t, 9, sum.PointsCntFiltered)
	assert.Equal(t, 1, sum.JumpFilter.Removed)
	assert.Equal(t, 2, sum.SandBaseEntries)
	assert.Equal(t, 2, sum.TripsTotal)
	// Порог сводки 1 км проходит только длинный рейс.
	assert.Equal(t, 1, sum.TripsFiltered)
	// Сбойный фикс раздувает сырую дистанцию, фильтрованная заметно меньше.
	assert.Greater(t, sum.KmDst, sum.KmHaversine)
	assert.InDelta(t, 1.6, sum.KmHaversine, 0.2)
}

func TestSummarizeUsesConfiguredFilter(t *testing.T) {
	src := newFakeSource()
	loadReportTrack(t, src)

	// Порог скачка из конфига поднят до 10 км: сбойный фикс в 5 км проходит.
	r := newReport(src)
	r.Filter = FilterConfig{MaxJumpKm: 10, MaxSpeedKmh: 400}

	sum, err := r.Summarize(182, nil, nil, r.FilterDefaults())
	assert.NoError(t, err)
	assert.Equal(t, 10, sum.PointsCnt)
	assert.Equal(t, 10, sum.PointsCntFiltered)
	assert.Equal(t, 0, sum.JumpFilter.Removed)
}

func TestFilterDefaultsFillZeroes(t *testing.T) {
	r := &Report{Filter: FilterConfig{MaxJumpKm: 2.5}}

	cfg := r.FilterDefaults()
	assert.Equal(t, 2.5, cfg.MaxJumpKm)
	assert.Equal(t, track.DefaultMaxSpeedKmh, cfg.MaxSpeedKmh)

	empty := &Report{}
	assert.Equal(t, DefaultFilterConfig(), empty.FilterDefaults())
}

func TestSummarizeEmptyTrack(t *testing.T) {
	sum, err := newReport(newFakeSource()).Summarize(182, nil, nil, DefaultFilterConfig())
	assert.NoError(t, err)
	assert.Equal(t, 0, sum.PointsCnt)
	assert.Equal(t, 0, sum.TripsTotal)
	assert.Equal(t, "", sum.TmFrom)
}

func TestTripsForMapMinTripKmKeepsNumbering(t *testing.T) {
	src := newFakeSource()
	loadReportTrack(t, src)

	res, err := newReport(src).TripsForMap(182, nil, nil, DefaultFilterConfig(), 4000, 0.5)
	assert.NoError(t, err)

	assert.Equal(t, 10, res.PointsCnt)
	assert.Equal(t, 9, res.PointsCntFiltered)
	// Короткий заезд отброшен, но номер рейса сохраняет исходную нарезку.
	if assert.Len(t, res.Trips, 1) {
		trip := res.Trips[0]
		assert.Equal(t, 2, trip.I)
		assert.Equal(t, 7, trip.PointsCnt)
		assert.Equal(t, 1, trip.SlimStep)
		assert.Len(t, trip.Points, 7)
		assert.Equal(t, "2026-02-01 10:02:00", trip.TmFrom)
		assert.Equal(t, "2026-02-01 10:08:00", trip.TmTo)
		assert.InDelta(t, 1.23, trip.KmHaversine, 0.1)
	}
}

func TestTripsForMapWithoutThresholdKeepsAllTrips(t *testing.T) {
	src := newFakeSource()
	loadReportTrack(t, src)

	res, err := newReport(src).TripsForMap(182, nil, nil, DefaultFilterConfig(), 4000, 0)
	assert.NoError(t, err)
	if assert.Len(t, res.Trips, 2) {
		assert.Equal(t, 1, res.Trips[0].I)
		assert.Equal(t, 2, res.Trips[1].I)
	}
}

func TestTripsForMapDecimatesLongTrip(t *testing.T) {
	src := newFakeSource()

	// Один длинный рейс из 100 плотных точек без входов в зону.
	points := make([]track.TrackPoint, 0, 100)
	for i := 0; i < 100; i++ {
		points = append(points, track.TrackPoint{
			OID:       183,
			Time:      fmt.Sprintf("2026-02-01 10:%02d:%02d", i/60, i%60),
			Latitude:  52.1,
			Longitude: 37.5 + float64(i)*0.0001,
		})
	}
	_, _, err := src.AddTrackPoints(points)
	assert.NoError(t, err)

	res, err := newReport(src).TripsForMap(183, nil, nil, DefaultFilterConfig(), 40, 0)
	assert.NoError(t, err)
	if assert.Len(t, res.Trips, 1) {
		trip := res.Trips[0]
		assert.Equal(t, 100, trip.PointsCnt)
		assert.Equal(t, 2, trip.SlimStep)
		assert.Len(t, trip.Points, 50)
		// Последняя точка рейса не теряется при прореживании.
		assert.Equal(t, "2026-02-01 10:01:39", trip.Points[len(trip.Points)-1].Tm)
	}
}

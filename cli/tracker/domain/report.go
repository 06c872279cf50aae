package domain

import (
	"math"
	"time"

	"github.com/daniil11ru/volovo/cli/tracker/repository"
	"github.com/daniil11ru/volovo/cli/tracker/track"
	"github.com/daniil11ru/volovo/cli/tracker/util"
)

// Лимит выборки точек на один запрос отчёта.
const DefaultPointsLimit = 500000

// Минимальная длина рейса для сводки: короче — технологический заезд,
// а не рейс.
const minTripKmSummary = 1.0

type FilterConfig struct {
	MaxJumpKm   float64
	MaxSpeedKmh float64
}

func DefaultFilterConfig() FilterConfig {
	return FilterConfig{MaxJumpKm: track.DefaultMaxJumpKm, MaxSpeedKmh: track.DefaultMaxSpeedKmh}
}

type Summary struct {
	OID               int32             `json:"oid"`
	TmFrom            string            `json:"tm_from"`
	TmTo              string            `json:"tm_to"`
	PointsCnt         int               `json:"points_cnt"`
	PointsCntFiltered int               `json:"points_cnt_filtered"`
	JumpFilter        track.FilterStats `json:"jump_filter"`
	KmDst             float64           `json:"km_dst"`
	KmHaversine       float64           `json:"km_haversine"`
	SandBaseEntries   int               `json:"sand_base_entries"`
	TripsTotal        int               `json:"trips_total"`
	TripsFiltered     int               `json:"trips_filtered"`
}

type MapPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Tm  string  `json:"tm"`
}

type TripForMap struct {
	I           int        `json:"i"`
	Points      []MapPoint `json:"points"`
	PointsCnt   int        `json:"points_cnt"`
	SlimStep    int        `json:"slim_step"`
	KmHaversine float64    `json:"km_haversine"`
	KmDst       float64    `json:"km_dst"`
	TmFrom      string     `json:"tm_from"`
	TmTo        string     `json:"tm_to"`
}

type TripsResult struct {
	OID               int32             `json:"oid"`
	TmFrom            string            `json:"tm_from"`
	TmTo              string            `json:"tm_to"`
	PointsCnt         int               `json:"points_cnt"`
	PointsCntFiltered int               `json:"points_cnt_filtered"`
	JumpFilter        track.FilterStats `json:"jump_filter"`
	Trips             []TripForMap      `json:"trips"`
}

// Report — отчётные операции над уже сохранёнными треками: фильтр шумов,
// нарезка на рейсы от пескобазы, прореживание для карты. Чистый путь чтения,
// общего изменяемого состояния нет.
type Report struct {
	Repository  *repository.Primary
	Fence       track.Geofence
	Filter      FilterConfig
	PointsLimit int
}

// FilterDefaults — пороги фильтра, настроенные в конфиге; незаполненные
// заменяются встроенными. Запрос может перекрыть их своими параметрами.
func (r *Report) FilterDefaults() FilterConfig {
	cfg := r.Filter
	if cfg.MaxJumpKm <= 0 {
		cfg.MaxJumpKm = track.DefaultMaxJumpKm
	}
	if cfg.MaxSpeedKmh <= 0 {
		cfg.MaxSpeedKmh = track.DefaultMaxSpeedKmh
	}
	return cfg
}

func (r *Report) limit() int {
	if r.PointsLimit > 0 {
		return r.PointsLimit
	}
	return DefaultPointsLimit
}

func (r *Report) Summarize(oid int32, from, to *time.Time, cfg FilterConfig) (Summary, error) {
	pts, err := r.Repository.GetTrackPoints(oid, from, to, r.limit())
	if err != nil {
		return Summary{}, err
	}

	kmDst := track.TotalKm(pts)
	filtered, stats := track.FilterJumps(pts, cfg.MaxJumpKm, cfg.MaxSpeedKmh)
	kmHav := track.TotalKm(filtered)

	entries := track.CountEntries(filtered, r.Fence)
	trips, _ := track.SplitTrips(filtered, r.Fence)

	tripsFiltered := 0
	for _, tr := range trips {
		if track.TotalKm(tr) >= minTripKmSummary {
			tripsFiltered++
		}
	}

	return Summary{
		OID:               oid,
		TmFrom:            formatOptional(from),
		TmTo:              formatOptional(to),
		PointsCnt:         len(pts),
		PointsCntFiltered: len(filtered),
		JumpFilter:        stats,
		KmDst:             round3(kmDst),
		KmHaversine:       round3(kmHav),
		SandBaseEntries:   entries,
		TripsTotal:        len(trips),
		TripsFiltered:     tripsFiltered,
	}, nil
}

func (r *Report) TripsForMap(oid int32, from, to *time.Time, cfg FilterConfig, maxPoints int, minTripKm float64) (TripsResult, error) {
	pts, err := r.Repository.GetTrackPoints(oid, from, to, r.limit())
	if err != nil {
		return TripsResult{}, err
	}

	filtered, stats := track.FilterJumps(pts, cfg.MaxJumpKm, cfg.MaxSpeedKmh)
	trips, _ := track.SplitTrips(filtered, r.Fence)

	out := make([]TripForMap, 0, len(trips))
	for i, tr := range trips {
		distHav := track.TotalKm(tr)
		if minTripKm > 0 && distHav < minTripKm {
			continue
		}

		slim, step := track.Decimate(tr, maxPoints)
		points := util.Map(slim, func(p track.TrackPoint) MapPoint {
			return MapPoint{Lat: p.Latitude, Lon: p.Longitude, Tm: p.Time}
		})

		trip := TripForMap{
			I:           i + 1,
			Points:      points,
			PointsCnt:   len(tr),
			SlimStep:    step,
			KmHaversine: round3(distHav),
			KmDst:       round3(distHav),
		}
		if len(tr) > 0 {
			trip.TmFrom = tr[0].Time
			trip.TmTo = tr[len(tr)-1].Time
		}
		out = append(out, trip)
	}

	return TripsResult{
		OID:               oid,
		TmFrom:            formatOptional(from),
		TmTo:              formatOptional(to),
		PointsCnt:         len(pts),
		PointsCntFiltered: len(filtered),
		JumpFilter:        stats,
		Trips:             out,
	}, nil
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return track.FormatTime(*t)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

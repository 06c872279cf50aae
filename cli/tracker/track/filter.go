package track

import "github.com/daniil11ru/volovo/cli/tracker/geo"

// Пороговые значения фильтра по умолчанию.
const (
	DefaultMaxJumpKm   = 1.0
	DefaultMaxSpeedKmh = 180.0
)

type FilterStats struct {
	Original int `json:"original"`
	Kept     int `json:"kept"`
	Removed  int `json:"removed"`
}

// FilterJumps отбрасывает точки с неправдоподобным скачком координат или
// подразумеваемой скоростью. Сравнение всегда идёт с последней ПРИНЯТОЙ
// точкой: серия подряд идущих сбойных фиксов поглощается целиком, а не
// сравнивается каждая со своей предшественницей. Первая точка принимается
// безусловно. Проверка скорости выполняется только при положительной
// разнице времени.
func FilterJumps(points []TrackPoint, maxJumpKm, maxSpeedKmh float64) ([]TrackPoint, FilterStats) {
	n := len(points)
	if n < 2 {
		return points, FilterStats{Original: n, Kept: n}
	}

	kept := make([]TrackPoint, 0, n)
	kept = append(kept, points[0])
	prev := points[0]

	for _, p := range points[1:] {
		d := geo.DistanceKm(prev.Latitude, prev.Longitude, p.Latitude, p.Longitude)

		speedOK := true
		t1, err1 := ParseTime(prev.Time)
		t2, err2 := ParseTime(p.Time)
		if err1 == nil && err2 == nil {
			dt := t2.Sub(t1).Seconds()
			if dt > 0 {
				if d/(dt/3600.0) > maxSpeedKmh {
					speedOK = false
				}
			}
		}

		if d <= maxJumpKm && speedOK {
			kept = append(kept, p)
			prev = p
		}
	}

	return kept, FilterStats{Original: n, Kept: len(kept), Removed: n - len(kept)}
}

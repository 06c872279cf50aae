package track

import "github.com/daniil11ru/volovo/cli/tracker/geo"

// Geofence — круговая зона погрузки (пескобаза).
type Geofence struct {
	Latitude  float64
	Longitude float64
	RadiusKm  float64
}

// Contains — принадлежность точки зоне: расстояние до центра не больше радиуса.
func (g Geofence) Contains(p TrackPoint) bool {
	return geo.DistanceKm(g.Latitude, g.Longitude, p.Latitude, p.Longitude) <= g.RadiusKm
}

// CountEntries считает входы в зону: переходы снаружи (или от начала серии)
// внутрь.
func CountEntries(points []TrackPoint, g Geofence) int {
	entries := 0
	insidePrev := false
	for _, p := range points {
		inside := g.Contains(p)
		if inside && !insidePrev {
			entries++
		}
		insidePrev = inside
	}
	return entries
}

// SplitTrips разрезает серию точек на рейсы по входам в зону погрузки.
// Рейс — полуинтервал [вход_i, вход_i+1), последний рейс — от последнего
// входа до конца серии. Точки до первого входа рейса не образуют; если
// входов нет, вся серия считается одним рейсом. Сегментация никогда не
// теряет точки между входами; отбраковка коротких рейсов — политика
// потребителя, применяемая после.
func SplitTrips(points []TrackPoint, g Geofence) ([][]TrackPoint, []int) {
	entryIdxs := []int{}
	insidePrev := false
	for i, p := range points {
		inside := g.Contains(p)
		if inside && !insidePrev {
			entryIdxs = append(entryIdxs, i)
		}
		insidePrev = inside
	}

	if len(entryIdxs) == 0 {
		if len(points) == 0 {
			return nil, entryIdxs
		}
		return [][]TrackPoint{points}, entryIdxs
	}

	trips := make([][]TrackPoint, 0, len(entryIdxs))
	for i, start := range entryIdxs {
		end := len(points)
		if i+1 < len(entryIdxs) {
			end = entryIdxs[i+1]
		}
		trips = append(trips, points[start:end])
	}

	return trips, entryIdxs
}

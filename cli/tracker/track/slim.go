package track

// Decimate прореживает серию до примерно maxPoints точек с постоянным шагом.
// Последняя точка серии сохраняется всегда: если шаг её выбрасывает, она
// замещает последний отобранный элемент, чтобы конец рейса на карте не
// «обрезался». Возвращает прореженную серию и шаг.
func Decimate(points []TrackPoint, maxPoints int) ([]TrackPoint, int) {
	n := len(points)
	if maxPoints <= 0 || n <= maxPoints {
		return points, 1
	}

	step := n / maxPoints
	if step < 1 {
		step = 1
	}

	sampled := make([]TrackPoint, 0, n/step+1)
	for i := 0; i < n; i += step {
		sampled = append(sampled, points[i])
	}

	last := points[n-1]
	if sampled[len(sampled)-1].Time != last.Time {
		sampled[len(sampled)-1] = last
	}

	return sampled, step
}

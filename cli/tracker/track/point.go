package track

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/daniil11ru/volovo/cli/tracker/geo"
)

// TimeLayout — формат времени источника: наивное локальное время без зоны.
const TimeLayout = "2006-01-02 15:04:05"

// TrackPoint — одна точка трека из внешней системы мониторинга.
// Ключ дедупликации — (OID, Time).
type TrackPoint struct {
	OID       int32
	Time      string
	Latitude  float64
	Longitude float64
	Speed     *float64
	Status    *string
	Direction *float64
	Odometer  *float64
	Width     *float64
	Index     *int32

	// Метаданные загрузки: ключ запуска и окно источника, из которого точка
	// пришла. Позволяют отличить честную переотправку от коллизии (oid, tm)
	// на стыке соседних чанков.
	TrackKey   string
	WindowFrom string
	WindowTo   string
}

var trailingFraction = regexp.MustCompile(`\.\d+.*$`)
var trailingZone = regexp.MustCompile(`(Z|[+-]\d{2}:?\d{2})$`)

// ParseTime разбирает время источника. Миллисекунды и маркеры зоны
// отбрасываются: источник их не гарантирует и не документирует.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "T", " "))
	s = trailingFraction.ReplaceAllString(s, "")
	s = strings.TrimSpace(trailingZone.ReplaceAllString(s, ""))

	t, err := time.Parse(TimeLayout, s)
	if err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04", s)
}

// FormatTime приводит время к формату источника.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// StartOfMonth — начало текущего календарного месяца в наивном локальном
// времени, как его понимает источник.
func StartOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

// rawRow — строка массива coords. Источник отдаёт либо позиционный массив
// [dir, dst, lat, lon, speed, st, tm, width], либо объект с теми же полями.
type rawRow struct {
	Dir   json.RawMessage `json:"dir"`
	Dst   json.RawMessage `json:"dst"`
	Lat   json.RawMessage `json:"lat"`
	Lon   json.RawMessage `json:"lon"`
	Speed json.RawMessage `json:"speed"`
	St    json.RawMessage `json:"st"`
	Tm    json.RawMessage `json:"tm"`
	Width json.RawMessage `json:"width"`
}

// ParseCoords разбирает массив coords ответа источника в точки трека.
// Строки без широты, долготы или времени пропускаются; возвращается число
// пропущенных. Неразборчивая строка — не ошибка: источник регулярно
// подмешивает мусор на стыках чанков.
func ParseCoords(oid int32, coords []json.RawMessage) ([]TrackPoint, int) {
	points := make([]TrackPoint, 0, len(coords))
	skipped := 0

	for _, raw := range coords {
		row, ok := decodeRow(raw)
		if !ok {
			skipped++
			continue
		}

		lat := toFloat(row.Lat)
		lon := toFloat(row.Lon)
		tm := toString(row.Tm)
		if lat == nil || lon == nil || tm == "" {
			skipped++
			continue
		}

		p := TrackPoint{
			OID:       oid,
			Time:      tm,
			Latitude:  *lat,
			Longitude: *lon,
			Speed:     toFloat(row.Speed),
			Direction: toFloat(row.Dir),
			Odometer:  toFloat(row.Dst),
			Width:     toFloat(row.Width),
		}
		if st := toString(row.St); st != "" {
			p.Status = &st
		}
		points = append(points, p)
	}

	return points, skipped
}

func decodeRow(raw json.RawMessage) (rawRow, bool) {
	trimmed := strings.TrimSpace(string(raw))

	if strings.HasPrefix(trimmed, "[") {
		var fields []json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return rawRow{}, false
		}
		row := rawRow{}
		at := func(i int) json.RawMessage {
			if i < len(fields) {
				return fields[i]
			}
			return nil
		}
		row.Dir, row.Dst, row.Lat, row.Lon = at(0), at(1), at(2), at(3)
		row.Speed, row.St, row.Tm, row.Width = at(4), at(5), at(6), at(7)
		return row, true
	}

	if strings.HasPrefix(trimmed, "{") {
		var row rawRow
		if err := json.Unmarshal(raw, &row); err != nil {
			return rawRow{}, false
		}
		return row, true
	}

	return rawRow{}, false
}

// toFloat терпимо относится к числам в кавычках и запятой вместо точки.
func toFloat(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func toString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}

	return ""
}

// TotalKm — суммарная длина трека по гаверсинусу.
func TotalKm(points []TrackPoint) float64 {
	if len(points) < 2 {
		return 0
	}

	total := 0.0
	prev := points[0]
	for _, p := range points[1:] {
		total += geo.DistanceKm(prev.Latitude, prev.Longitude, p.Latitude, p.Longitude)
		prev = p
	}
	return total
}

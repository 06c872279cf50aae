package postgres

/*
Настройки, которые могут (а не которые – должны) быть в конфиге для
подключения первичного хранилища:

host = "localhost"
port = "5432"
user = "volovo_pg"
password = "postgres"
database = "volovo"
sslmode = "disable"
*/

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"

	"github.com/daniil11ru/volovo/cli/tracker/source"
	"github.com/daniil11ru/volovo/cli/tracker/track"
)

type Source struct {
	connection *sql.DB
}

func NewSource(cfg map[string]string) (*Source, error) {
	if cfg == nil {
		return nil, fmt.Errorf("некорректная ссылка на конфигурацию")
	}

	connStr := fmt.Sprintf("dbname=%s host=%s port=%s user=%s password=%s sslmode=%s",
		cfg["database"], cfg["host"], cfg["port"], cfg["user"], cfg["password"], cfg["sslmode"])

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к PostgreSQL: %v", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("PostgreSQL недоступен: %v", err)
	}

	return &Source{connection: db}, nil
}

const upsertPointQuery = `
	INSERT INTO tracking_trackpoint
		(oid, tm, lat, lon, speed, st, dir, dst, width, track_key, src_window_from, src_window_to, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
	ON CONFLICT (oid, tm) DO UPDATE SET
		lat = EXCLUDED.lat,
		lon = EXCLUDED.lon,
		speed = EXCLUDED.speed,
		st = EXCLUDED.st,
		dir = EXCLUDED.dir,
		dst = EXCLUDED.dst,
		width = EXCLUDED.width,
		track_key = EXCLUDED.track_key,
		src_window_from = EXCLUDED.src_window_from,
		src_window_to = EXCLUDED.src_window_to,
		updated_at = NOW()
	RETURNING (xmax = 0) AS inserted`

// AddTrackPoints досохраняет пакет точек одной транзакцией. Повторный вызов
// с теми же точками ничего не меняет: ключ (oid, tm) стабилен между
// перезапусками. Точка с нечитаемым временем пропускается, а не роняет пакет.
func (s *Source) AddTrackPoints(points []track.TrackPoint) (int64, int64, error) {
	if len(points) == 0 {
		return 0, 0, nil
	}

	tx, err := s.connection.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("не удалось открыть транзакцию: %v", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(upsertPointQuery)
	if err != nil {
		return 0, 0, fmt.Errorf("не удалось подготовить запрос: %v", err)
	}
	defer stmt.Close()

	var matched, inserted int64
	for _, p := range points {
		tm, parseErr := track.ParseTime(p.Time)
		if parseErr != nil {
			log.Warnf("Точка OID %d с нечитаемым временем %q пропущена", p.OID, p.Time)
			continue
		}

		var wasInserted bool
		err = stmt.QueryRow(
			p.OID, tm, p.Latitude, p.Longitude,
			nullFloat(p.Speed), nullString(p.Status), nullFloat(p.Direction),
			nullFloat(p.Odometer), nullFloat(p.Width),
			p.TrackKey, p.WindowFrom, p.WindowTo,
		).Scan(&wasInserted)
		if err != nil {
			return 0, 0, fmt.Errorf("не удалось вставить точку: %v", err)
		}

		if wasInserted {
			inserted++
		} else {
			matched++
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("не удалось зафиксировать транзакцию: %v", err)
	}

	return matched, inserted, nil
}

func (s *Source) GetTrackPoints(oid int32, from, to *time.Time, limit int) ([]track.TrackPoint, error) {
	query := `SELECT id, tm, lat, lon, speed, st FROM tracking_trackpoint WHERE oid = $1`
	args := []interface{}{oid}

	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND tm >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND tm <= $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY tm LIMIT $%d", len(args))

	rows, err := s.connection.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить точки: %v", err)
	}
	defer rows.Close()

	var points []track.TrackPoint
	for rows.Next() {
		var (
			id    int32
			tm    time.Time
			p     track.TrackPoint
			speed sql.NullFloat64
			st    sql.NullString
		)
		if err := rows.Scan(&id, &tm, &p.Latitude, &p.Longitude, &speed, &st); err != nil {
			return nil, fmt.Errorf("не удалось прочитать точку: %v", err)
		}
		p.OID = oid
		p.Time = track.FormatTime(tm)
		p.Index = &id
		if speed.Valid {
			v := speed.Float64
			p.Speed = &v
		}
		if st.Valid {
			v := st.String
			p.Status = &v
		}
		points = append(points, p)
	}

	return points, rows.Err()
}

func (s *Source) GetOIDs(limit int) ([]source.OIDInfo, error) {
	rows, err := s.connection.Query(
		`SELECT oid, COUNT(*)::bigint AS points_cnt FROM tracking_trackpoint GROUP BY oid ORDER BY oid LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить список трекеров: %v", err)
	}
	defer rows.Close()

	var out []source.OIDInfo
	for rows.Next() {
		var info source.OIDInfo
		if err := rows.Scan(&info.OID, &info.PointsCnt); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *Source) GetLastSyncTime(oid int32) (time.Time, bool, error) {
	var last time.Time
	err := s.connection.QueryRow(`SELECT last_dt FROM sync_state WHERE oid = $1`, oid).Scan(&last)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("не удалось получить курсор синхронизации: %v", err)
	}
	return last, true, nil
}

func (s *Source) SetLastSyncTime(oid int32, t time.Time) error {
	_, err := s.connection.Exec(
		`INSERT INTO sync_state (oid, last_dt, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (oid) DO UPDATE SET last_dt = EXCLUDED.last_dt, updated_at = NOW()`, oid, t)
	if err != nil {
		return fmt.Errorf("не удалось сохранить курсор синхронизации: %v", err)
	}
	return nil
}

func (s *Source) ResetSyncTime(oid int32) error {
	if _, err := s.connection.Exec(`DELETE FROM sync_state WHERE oid = $1`, oid); err != nil {
		return fmt.Errorf("не удалось сбросить курсор синхронизации: %v", err)
	}
	return nil
}

func (s *Source) AddForm(oid int32, dtFrom, dtTo *time.Time, payload json.RawMessage) (int64, error) {
	var id int64
	err := s.connection.QueryRow(
		`INSERT INTO putevoy_forms (created_at, oid, dt_from, dt_to, payload, updated_at)
		 VALUES (NOW(), $1, $2, $3, $4::jsonb, NOW()) RETURNING id`,
		oid, nullTime(dtFrom), nullTime(dtTo), []byte(payload)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("не удалось сохранить форму: %v", err)
	}
	return id, nil
}

func (s *Source) GetForm(id int64) (*source.Form, error) {
	f := source.Form{}
	var (
		oid    sql.NullInt32
		dtFrom sql.NullTime
		dtTo   sql.NullTime
	)
	err := s.connection.QueryRow(
		`SELECT id, created_at, oid, dt_from, dt_to, payload FROM putevoy_forms WHERE id = $1`, id).
		Scan(&f.ID, &f.CreatedAt, &oid, &dtFrom, &dtTo, (*[]byte)(&f.Payload))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("не удалось получить форму: %v", err)
	}

	if oid.Valid {
		v := oid.Int32
		f.OID = &v
	}
	if dtFrom.Valid {
		v := dtFrom.Time
		f.DtFrom = &v
	}
	if dtTo.Valid {
		v := dtTo.Time
		f.DtTo = &v
	}
	return &f, nil
}

func (s *Source) GetForms(limit int) ([]source.Form, error) {
	rows, err := s.connection.Query(
		`SELECT id, created_at, oid, dt_from, dt_to, payload FROM putevoy_forms ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить список форм: %v", err)
	}
	defer rows.Close()

	var out []source.Form
	for rows.Next() {
		f := source.Form{}
		var (
			oid    sql.NullInt32
			dtFrom sql.NullTime
			dtTo   sql.NullTime
		)
		if err := rows.Scan(&f.ID, &f.CreatedAt, &oid, &dtFrom, &dtTo, (*[]byte)(&f.Payload)); err != nil {
			return nil, err
		}
		if oid.Valid {
			v := oid.Int32
			f.OID = &v
		}
		if dtFrom.Valid {
			v := dtFrom.Time
			f.DtFrom = &v
		}
		if dtTo.Valid {
			v := dtTo.Time
			f.DtTo = &v
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Source) GetRoutes() ([]source.Route, error) {
	rows, err := s.connection.Query(
		`SELECT id, name, road_width_m, road_length_km, pss_tonnage_t FROM tracking_routecatalog ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить справочник маршрутов: %v", err)
	}
	defer rows.Close()

	var out []source.Route
	for rows.Next() {
		r := source.Route{}
		var width, length, tonnage sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.Name, &width, &length, &tonnage); err != nil {
			return nil, err
		}
		if width.Valid {
			v := width.Float64
			r.RoadWidthM = &v
		}
		if length.Valid {
			v := length.Float64
			r.RoadLengthKm = &v
		}
		if tonnage.Valid {
			v := tonnage.Float64
			r.PssTonnageT = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Source) Close() error {
	return s.connection.Close()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

package source

import (
	"encoding/json"
	"time"

	"github.com/daniil11ru/volovo/cli/tracker/track"
)

// OIDInfo — трекер и число его точек в хранилище.
type OIDInfo struct {
	OID       int32 `json:"oid"`
	PointsCnt int64 `json:"points_cnt"`
}

// Route — запись справочника маршрутов.
type Route struct {
	ID           int32    `json:"id"`
	Name         string   `json:"name"`
	RoadWidthM   *float64 `json:"road_width_m"`
	RoadLengthKm *float64 `json:"road_length_km"`
	PssTonnageT  *float64 `json:"pss_tonnage_t"`
}

// Form — сохранённый путевой лист.
type Form struct {
	ID        int64
	CreatedAt time.Time
	OID       *int32
	DtFrom    *time.Time
	DtTo      *time.Time
	Payload   json.RawMessage
}

// Primary — первичный источник данных синхронизатора: точки треков,
// курсоры синхронизации, путевые листы и справочники.
type Primary interface {
	// AddTrackPoints идемпотентно досохраняет пакет точек по ключу (oid, tm).
	// Возвращает число совпавших и вставленных строк.
	AddTrackPoints(points []track.TrackPoint) (matched int64, inserted int64, err error)
	GetTrackPoints(oid int32, from, to *time.Time, limit int) ([]track.TrackPoint, error)
	GetOIDs(limit int) ([]OIDInfo, error)

	// Курсор синхронизации: верхняя отметка успешно загруженного времени.
	GetLastSyncTime(oid int32) (time.Time, bool, error)
	SetLastSyncTime(oid int32, t time.Time) error
	ResetSyncTime(oid int32) error

	AddForm(oid int32, dtFrom, dtTo *time.Time, payload json.RawMessage) (int64, error)
	GetForm(id int64) (*Form, error)
	GetForms(limit int) ([]Form, error)

	GetRoutes() ([]Route, error)

	Close() error
}

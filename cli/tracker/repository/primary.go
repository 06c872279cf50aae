package repository

import (
	"encoding/json"
	"time"

	"github.com/daniil11ru/volovo/cli/tracker/source"
	"github.com/daniil11ru/volovo/cli/tracker/track"
)

// PersistenceError — сбой записи в первичное хранилище. Пакет, на котором он
// возник, не считается сброшенным; курсор синхронизации для этого трекера
// не двигается.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return "ошибка сохранения: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Primary — репозиторий над первичным источником данных.
type Primary struct {
	Source source.Primary
}

func (p *Primary) AddTrackPoints(points []track.TrackPoint) (int64, int64, error) {
	matched, inserted, err := p.Source.AddTrackPoints(points)
	if err != nil {
		return matched, inserted, &PersistenceError{Err: err}
	}
	return matched, inserted, nil
}

func (p *Primary) GetTrackPoints(oid int32, from, to *time.Time, limit int) ([]track.TrackPoint, error) {
	return p.Source.GetTrackPoints(oid, from, to, limit)
}

func (p *Primary) GetOIDs(limit int) ([]source.OIDInfo, error) {
	return p.Source.GetOIDs(limit)
}

func (p *Primary) GetLastSyncTime(oid int32) (time.Time, bool, error) {
	return p.Source.GetLastSyncTime(oid)
}

func (p *Primary) SetLastSyncTime(oid int32, t time.Time) error {
	if err := p.Source.SetLastSyncTime(oid, t); err != nil {
		return &PersistenceError{Err: err}
	}
	return nil
}

func (p *Primary) ResetSyncTime(oid int32) error {
	return p.Source.ResetSyncTime(oid)
}

func (p *Primary) AddForm(oid int32, dtFrom, dtTo *time.Time, payload json.RawMessage) (int64, error) {
	return p.Source.AddForm(oid, dtFrom, dtTo, payload)
}

func (p *Primary) GetForm(id int64) (*source.Form, error) {
	return p.Source.GetForm(id)
}

func (p *Primary) GetForms(limit int) ([]source.Form, error) {
	return p.Source.GetForms(limit)
}

func (p *Primary) GetRoutes() ([]source.Route, error) {
	return p.Source.GetRoutes()
}

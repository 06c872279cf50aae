package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/daniil11ru/volovo/cli/tracker/fetch"
	"github.com/daniil11ru/volovo/cli/tracker/repository"
	"github.com/daniil11ru/volovo/cli/tracker/session"
	"github.com/daniil11ru/volovo/cli/tracker/track"
)

// DefaultBufferLimit — порог сброса буфера точек в хранилище.
const DefaultBufferLimit = 5000

// WindowFetcher загружает одно окно точек для трекера.
type WindowFetcher interface {
	FetchWindow(ctx context.Context, oid int32, w fetch.Window) (*fetch.Response, error)
}

// Saver — приёмник сырых ответов источника (архив).
type Saver interface {
	Save(interface{ ToBytes() ([]byte, error) }) error
}

type SyncOptions struct {
	OIDs       []int32
	From       *time.Time
	To         *time.Time
	ChunkHours int
	ResetState bool
}

type OIDReport struct {
	Points   int
	Matched  int64
	Inserted int64
	Err      error
}

type SyncReport struct {
	PerOID        map[int32]*OIDReport
	TotalPoints   int
	TotalMatched  int64
	TotalInserted int64
	SkippedRows   int
}

// SyncTracks — пошаговая догрузка треков: курсор → окна → буферизованная
// идемпотентная запись → сдвиг курсора. Трекеры обрабатываются строго
// последовательно, окна — в неубывающем порядке времени: сдвиг курсора
// предполагает монотонный прогресс.
type SyncTracks struct {
	Repository   *repository.Primary
	Fetcher      WindowFetcher
	Archive      Saver
	BufferLimit  int
	RequestSleep time.Duration

	now func() time.Time
}

func (s *SyncTracks) timeNow() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// Run выполняет один проход синхронизации. Ошибка авторизации фатальна для
// всего запуска: без сессии не продвинется ни один трекер. Прочие ошибки
// изолированы по трекерам; ошибка возвращается, только если не продвинулся
// ни один.
func (s *SyncTracks) Run(ctx context.Context, opts SyncOptions) (SyncReport, error) {
	report := SyncReport{PerOID: make(map[int32]*OIDReport)}

	if len(opts.OIDs) == 0 {
		return report, fmt.Errorf("не задан ни один OID")
	}

	failed := 0
	for _, oid := range opts.OIDs {
		oidReport := &OIDReport{}
		report.PerOID[oid] = oidReport

		err := s.syncOID(ctx, oid, opts, &report, oidReport)
		if err != nil {
			oidReport.Err = err

			var authErr *session.AuthError
			if errors.As(err, &authErr) {
				// Без авторизации не продвинется ни один трекер.
				return report, err
			}

			log.Errorf("OID %d завершился с ошибкой: %v", oid, err)
			failed++
			continue
		}

		log.Infof("OID %d: точек %d (совпало %d, вставлено %d)",
			oid, oidReport.Points, oidReport.Matched, oidReport.Inserted)
	}

	if failed == len(opts.OIDs) {
		return report, fmt.Errorf("все трекеры завершились с ошибкой")
	}
	return report, nil
}

func (s *SyncTracks) syncOID(ctx context.Context, oid int32, opts SyncOptions, report *SyncReport, oidReport *OIDReport) error {
	dtFrom, err := s.resolveFrom(oid, opts)
	if err != nil {
		return err
	}

	dtTo := s.timeNow().Truncate(time.Second)
	if opts.To != nil {
		dtTo = *opts.To
	}
	if !dtTo.After(dtFrom) {
		log.Debugf("OID %d: период пуст (%s — %s), загружать нечего",
			oid, track.FormatTime(dtFrom), track.FormatTime(dtTo))
		return nil
	}

	runFrom := track.FormatTime(dtFrom)
	runTo := track.FormatTime(dtTo)
	trackKey := fmt.Sprintf("%d|%s|%s", oid, runFrom, runTo)

	log.Infof("OID %d: период %s — %s, чанк %d ч", oid, runFrom, runTo, opts.ChunkHours)

	bufferLimit := s.BufferLimit
	if bufferLimit <= 0 {
		bufferLimit = DefaultBufferLimit
	}

	buf := make([]track.TrackPoint, 0, bufferLimit)
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		matched, inserted, err := s.Repository.AddTrackPoints(buf)
		report.TotalMatched += matched
		report.TotalInserted += inserted
		oidReport.Matched += matched
		oidReport.Inserted += inserted
		buf = buf[:0]
		return err
	}

	windowFailed := false
	for _, w := range fetch.Chunks(dtFrom, dtTo, opts.ChunkHours) {
		resp, err := s.Fetcher.FetchWindow(ctx, oid, w)
		if err != nil {
			var authErr *session.AuthError
			if errors.As(err, &authErr) {
				return err
			}
			// Сбой одного окна не прерывает загрузку остальных, но курсор
			// этого трекера в конце не сдвинется: дыру нужно перечитать.
			log.Errorf("OID %d: окно %s — %s пропущено: %v", oid, w.FromString(), w.ToString(), err)
			windowFailed = true
			continue
		}

		if s.Archive != nil {
			if err := s.Archive.Save(resp); err != nil {
				log.Warnf("Не удалось отправить сырой ответ в архив: %v", err)
			}
		}

		report.TotalPoints += len(resp.Points)
		report.SkippedRows += resp.Skipped
		oidReport.Points += len(resp.Points)

		for _, p := range resp.Points {
			p.TrackKey = trackKey
			p.WindowFrom = w.FromString()
			p.WindowTo = w.ToString()
			buf = append(buf, p)
		}

		if len(buf) >= bufferLimit {
			if err := flush(); err != nil {
				return err
			}
		}

		if s.RequestSleep > 0 {
			select {
			case <-time.After(s.RequestSleep):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if err := flush(); err != nil {
		return err
	}

	if windowFailed {
		return fmt.Errorf("часть окон периода %s — %s не загружена, курсор не сдвинут", runFrom, runTo)
	}

	return s.Repository.SetLastSyncTime(oid, dtTo)
}

// resolveFrom определяет начало периода: принудительное, из курсора, либо
// начало текущего месяца при первом запуске.
func (s *SyncTracks) resolveFrom(oid int32, opts SyncOptions) (time.Time, error) {
	if opts.ResetState {
		if err := s.Repository.ResetSyncTime(oid); err != nil {
			return time.Time{}, err
		}
		if opts.From != nil {
			return *opts.From, nil
		}
		return track.StartOfMonth(s.timeNow()), nil
	}

	if opts.From != nil {
		return *opts.From, nil
	}

	last, found, err := s.Repository.GetLastSyncTime(oid)
	if err != nil {
		return time.Time{}, err
	}
	if found {
		return last, nil
	}

	dt := track.StartOfMonth(s.timeNow())
	if err := s.Repository.SetLastSyncTime(oid, dt); err != nil {
		return time.Time{}, err
	}
	return dt, nil
}

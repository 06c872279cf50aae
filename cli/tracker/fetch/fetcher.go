package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/daniil11ru/volovo/cli/tracker/session"
	"github.com/daniil11ru/volovo/cli/tracker/track"
)

// Window — полуинтервал [From, To) одного запроса к источнику.
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) FromString() string { return track.FormatTime(w.From) }
func (w Window) ToString() string   { return track.FormatTime(w.To) }

// Chunks режет период на последовательные окна по hours часов (минимум 1),
// последнее окно обрезается по to.
func Chunks(from, to time.Time, hours int) []Window {
	if hours < 1 {
		hours = 1
	}
	step := time.Duration(hours) * time.Hour

	var out []Window
	cur := from
	for cur.Before(to) {
		nxt := cur.Add(step)
		if nxt.After(to) {
			nxt = to
		}
		out = append(out, Window{From: cur, To: nxt})
		cur = nxt
	}
	return out
}

// FetchError — сбой загрузки одного окна после всех повторов. Роняет только
// это окно; решать, прерывать ли весь запуск, — дело вызывающего.
type FetchError struct {
	OID    int32
	Window Window
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("не удалось загрузить окно %s — %s для OID %d: %v",
		e.Window.FromString(), e.Window.ToString(), e.OID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ErrNotAuthenticated — источник ответил HTTP 200, но в теле сообщил, что
// сессия не авторизована.
var ErrNotAuthenticated = fmt.Errorf("источник сообщил об отсутствии авторизации")

// Response — разобранный ответ источника на одно окно. Raw хранится для
// необязательного архива сырых ответов.
type Response struct {
	OID     int32
	Window  Window
	Raw     []byte
	Points  []track.TrackPoint
	Skipped int
}

// ToBytes отдаёт сырое тело ответа для архивных хранилищ.
func (r *Response) ToBytes() ([]byte, error) {
	return r.Raw, nil
}

type envelope struct {
	Result json.RawMessage   `json:"result"`
	Coords []json.RawMessage `json:"coords"`
}

// Fetcher загружает точки трека по окнам, поддерживая cookie-сессию через
// session.Manager. Не потокобезопасен: cookie кэшируется между окнами.
type Fetcher struct {
	BaseURL    string
	Session    *session.Manager
	Client     *http.Client
	Attempts   int
	RetrySleep time.Duration

	cookie string
	loaded bool
}

func NewFetcher(baseURL string, mgr *session.Manager, timeout time.Duration, attempts int, retrySleep time.Duration) *Fetcher {
	if attempts < 1 {
		attempts = 1
	}
	return &Fetcher{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Session:    mgr,
		Client:     &http.Client{Timeout: timeout},
		Attempts:   attempts,
		RetrySleep: retrySleep,
	}
}

// FetchWindow загружает и разбирает одно окно. Сохранённая cookie
// подтягивается лениво при первом окне, с контекстом вызывающего. Перед
// запросом cookie проверяется менеджером сессии; ответ с маркером
// «не авторизован» в теле принудительно обновляет cookie и повторяет то же
// окно ровно один раз.
func (f *Fetcher) FetchWindow(ctx context.Context, oid int32, w Window) (*Response, error) {
	if !f.loaded {
		f.cookie = f.Session.LoadStored(ctx)
		f.loaded = true
	}

	cookie, err := f.Session.EnsureValid(ctx, f.cookie)
	if err != nil {
		return nil, err
	}
	f.cookie = cookie

	resp, err := f.fetchOnce(ctx, oid, w)
	if err != nil {
		return nil, err
	}

	if notAuthenticated(resp.env.Result) {
		log.Warnf("Источник ответил 200, но сессия не авторизована — перелогин и повтор окна %s — %s",
			w.FromString(), w.ToString())

		if f.cookie, err = f.Session.Acquire(ctx); err != nil {
			return nil, err
		}
		if resp, err = f.fetchOnce(ctx, oid, w); err != nil {
			return nil, err
		}
		if notAuthenticated(resp.env.Result) {
			return nil, &FetchError{OID: oid, Window: w, Err: ErrNotAuthenticated}
		}
	}

	points, skipped := track.ParseCoords(oid, resp.env.Coords)
	if skipped > 0 {
		log.Debugf("OID %d, окно %s — %s: пропущено нечитаемых строк: %d",
			oid, w.FromString(), w.ToString(), skipped)
	}

	return &Response{OID: oid, Window: w, Raw: resp.raw, Points: points, Skipped: skipped}, nil
}

type fetched struct {
	raw []byte
	env envelope
}

// fetchOnce выполняет запрос окна с повторами с фиксированной задержкой.
func (f *Fetcher) fetchOnce(ctx context.Context, oid int32, w Window) (*fetched, error) {
	u := fmt.Sprintf("%s/api/Api.svc/track?oid=%d&from=%s&to=%s",
		f.BaseURL, oid, url.QueryEscape(w.FromString()), url.QueryEscape(w.ToString()))

	var lastErr error
	for attempt := 1; attempt <= f.Attempts; attempt++ {
		raw, err := f.doRequest(ctx, u)
		if err == nil {
			var env envelope
			if jsonErr := json.Unmarshal(raw, &env); jsonErr != nil {
				return nil, &FetchError{OID: oid, Window: w, Err: fmt.Errorf("нечитаемый ответ источника: %w", jsonErr)}
			}
			return &fetched{raw: raw, env: env}, nil
		}

		lastErr = err
		if attempt < f.Attempts {
			log.Debugf("Попытка %d/%d для окна %s — %s неуспешна: %v",
				attempt, f.Attempts, w.FromString(), w.ToString(), err)
			select {
			case <-time.After(f.RetrySleep):
			case <-ctx.Done():
				return nil, &FetchError{OID: oid, Window: w, Err: ctx.Err()}
			}
		}
	}

	return nil, &FetchError{OID: oid, Window: w, Err: lastErr}
}

func (f *Fetcher) doRequest(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Referer", f.BaseURL+"/MileageReportData.aspx")
	req.Header.Set("Cookie", f.cookie)
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// notAuthenticated распознаёт маркер «не авторизован» в теле ответа:
// строковый result вида "login" или "unauthorized".
func notAuthenticated(result json.RawMessage) bool {
	var s string
	if err := json.Unmarshal(result, &s); err != nil {
		return false
	}
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "login" || s == "unauthorized"
}

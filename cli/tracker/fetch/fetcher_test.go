package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/daniil11ru/volovo/cli/tracker/session"
)

func TestChunks(t *testing.T) {
	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	windows := Chunks(from, from.Add(24*time.Hour), 6)
	if assert.Len(t, windows, 4) {
		assert.Equal(t, "2026-02-01 00:00:00", windows[0].FromString())
		assert.Equal(t, "2026-02-01 06:00:00", windows[0].ToString())
		assert.Equal(t, "2026-02-01 18:00:00", windows[3].FromString())
		assert.Equal(t, "2026-02-02 00:00:00", windows[3].ToString())
	}

	// Последнее окно обрезается по границе периода.
	windows = Chunks(from, from.Add(7*time.Hour), 6)
	if assert.Len(t, windows, 2) {
		assert.Equal(t, "2026-02-01 07:00:00", windows[1].ToString())
	}

	// Шаг меньше часа поднимается до часа.
	windows = Chunks(from, from.Add(2*time.Hour), 0)
	assert.Len(t, windows, 2)

	assert.Empty(t, Chunks(from, from, 6))
	assert.Empty(t, Chunks(from, from.Add(-time.Hour), 6))
}

func TestNotAuthenticatedMarker(t *testing.T) {
	yes := []string{`"login"`, `"unauthorized"`, `" Login "`, `"UNAUTHORIZED"`}
	for _, raw := range yes {
		assert.True(t, notAuthenticated(json.RawMessage(raw)), "raw: %s", raw)
	}

	no := []string{`"ok"`, `null`, `123`, `{"state":"login"}`, ``}
	for _, raw := range no {
		assert.False(t, notAuthenticated(json.RawMessage(raw)), "raw: %s", raw)
	}
}

const loginHTML = `<input type="hidden" name="__VIEWSTATE" value="vs" />`

// portal регистрирует минимальные страницы логина и пробы; обработчик
// /api/Api.svc/track подставляется каждым тестом свой.
func portal(mux *http.ServeMux, logins *int32) {
	mux.HandleFunc("/login.aspx", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(loginHTML))
			return
		}
		atomic.AddInt32(logins, 1)
		http.SetCookie(w, &http.Cookie{Name: "ASP.NET_SessionId", Value: "fresh", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: ".ASPXAUTH", Value: "fresh", Path: "/"})
		w.Header().Set("Location", "/Default.aspx")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/Default.aspx", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/MileageReportData.aspx", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
}

func newFetcherForTest(t *testing.T, srv *httptest.Server) *Fetcher {
	store := &session.FileStore{Path: filepath.Join(t.TempDir(), "cookie.txt")}
	assert.NoError(t, store.Save(context.Background(), "ASP.NET_SessionId=seed; .ASPXAUTH=seed"))

	mgr := session.NewManager(srv.URL, "ivanov", "secret", store, 5*time.Second)
	return NewFetcher(srv.URL, mgr, 5*time.Second, 3, 10*time.Millisecond)
}

func testWindow() Window {
	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	return Window{From: from, To: from.Add(6 * time.Hour)}
}

const goodBody = `{"result":"ok","coords":[
	[0, 0, 52.03, 37.88, 10.5, "ok", "2026-02-01 01:00:00", 0],
	[0, 0, 52.04, 37.89, 11.0, "ok", "2026-02-01 02:00:00", 0]
]}`

func TestFetchWindowSuccess(t *testing.T) {
	var logins int32
	mux := http.NewServeMux()
	portal(mux, &logins)
	mux.HandleFunc("/api/Api.svc/track", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "182", q.Get("oid"))
		assert.Equal(t, "2026-02-01 00:00:00", q.Get("from"))
		assert.Equal(t, "2026-02-01 06:00:00", q.Get("to"))
		assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		assert.Contains(t, r.Header.Get("Cookie"), "ASP.NET_SessionId=seed")
		w.Write([]byte(goodBody))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newFetcherForTest(t, srv)

	resp, err := f.FetchWindow(context.Background(), 182, testWindow())
	assert.NoError(t, err)
	assert.Equal(t, int32(0), logins)
	if assert.NotNil(t, resp) {
		assert.Len(t, resp.Points, 2)
		assert.Equal(t, 0, resp.Skipped)
		assert.Equal(t, int32(182), resp.Points[0].OID)
		assert.Equal(t, []byte(goodBody), resp.Raw)
	}
}

// countingStore считает обращения к хранилищу cookie.
type countingStore struct {
	loads int
	line  string
}

func (s *countingStore) Load(_ context.Context) (string, error) {
	s.loads++
	return s.line, nil
}

func (s *countingStore) Save(_ context.Context, line string) error {
	s.line = line
	return nil
}

func TestFetcherLoadsStoredCookieOnFirstWindow(t *testing.T) {
	var logins int32
	mux := http.NewServeMux()
	portal(mux, &logins)
	mux.HandleFunc("/api/Api.svc/track", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Cookie"), "ASP.NET_SessionId=seed")
		w.Write([]byte(goodBody))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := &countingStore{line: "ASP.NET_SessionId=seed; .ASPXAUTH=seed"}
	mgr := session.NewManager(srv.URL, "ivanov", "secret", store, 5*time.Second)

	// Конструктор не ходит в хранилище: cookie читается при первом окне.
	f := NewFetcher(srv.URL, mgr, 5*time.Second, 3, 10*time.Millisecond)
	assert.Equal(t, 0, store.loads)

	_, err := f.FetchWindow(context.Background(), 182, testWindow())
	assert.NoError(t, err)
	assert.Equal(t, 1, store.loads)

	// Последующие окна используют кэш, а не перечитывают хранилище.
	_, err = f.FetchWindow(context.Background(), 182, testWindow())
	assert.NoError(t, err)
	assert.Equal(t, 1, store.loads)
}

func TestFetchWindowReauthOnBodyMarker(t *testing.T) {
	var logins, calls int32
	mux := http.NewServeMux()
	portal(mux, &logins)
	mux.HandleFunc("/api/Api.svc/track", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Write([]byte(`{"result":"login","coords":[]}`))
			return
		}
		assert.Contains(t, r.Header.Get("Cookie"), ".ASPXAUTH=fresh")
		w.Write([]byte(goodBody))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newFetcherForTest(t, srv)

	resp, err := f.FetchWindow(context.Background(), 182, testWindow())
	assert.NoError(t, err)
	assert.Equal(t, int32(1), logins)
	assert.Equal(t, int32(2), calls)
	if assert.NotNil(t, resp) {
		assert.Len(t, resp.Points, 2)
	}
}

func TestFetchWindowReauthRetriedExactlyOnce(t *testing.T) {
	var logins int32
	mux := http.NewServeMux()
	portal(mux, &logins)
	mux.HandleFunc("/api/Api.svc/track", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"unauthorized","coords":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newFetcherForTest(t, srv)

	_, err := f.FetchWindow(context.Background(), 182, testWindow())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Equal(t, int32(1), logins)
}

func TestFetchWindowRetriesOnServerError(t *testing.T) {
	var logins, calls int32
	mux := http.NewServeMux()
	portal(mux, &logins)
	mux.HandleFunc("/api/Api.svc/track", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(goodBody))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newFetcherForTest(t, srv)

	resp, err := f.FetchWindow(context.Background(), 182, testWindow())
	assert.NoError(t, err)
	assert.Equal(t, int32(2), calls)
	if assert.NotNil(t, resp) {
		assert.Len(t, resp.Points, 2)
	}
}

func TestFetchWindowExhaustsRetries(t *testing.T) {
	var logins int32
	mux := http.NewServeMux()
	portal(mux, &logins)
	mux.HandleFunc("/api/Api.svc/track", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newFetcherForTest(t, srv)

	_, err := f.FetchWindow(context.Background(), 182, testWindow())
	var fetchErr *FetchError
	if assert.ErrorAs(t, err, &fetchErr) {
		assert.Equal(t, int32(182), fetchErr.OID)
		assert.Equal(t, "2026-02-01 00:00:00", fetchErr.Window.FromString())
	}
}

func TestFetchWindowMalformedBody(t *testing.T) {
	var logins int32
	mux := http.NewServeMux()
	portal(mux, &logins)
	mux.HandleFunc("/api/Api.svc/track", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>это не JSON</html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newFetcherForTest(t, srv)

	_, err := f.FetchWindow(context.Background(), 182, testWindow())
	var fetchErr *FetchError
	assert.ErrorAs(t, err, &fetchErr)
}

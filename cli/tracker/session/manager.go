package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// AuthError — отказ авторизации: портал отверг учётные данные либо не выдал
// маркеры сессии. Фатальна для всего запуска синхронизации.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "ошибка авторизации: " + e.Reason
}

const (
	loginPage  = "/login.aspx"
	probePage  = "/MileageReportData.aspx"
	userAgent  = "Mozilla/5.0"
	sessionKey = "ASP.NET_SessionId="
	authKey    = ".ASPXAUTH="
)

// Manager владеет жизненным циклом cookie-сессии портала мониторинга.
// Acquire сериализован мьютексом: два конкурентных логина перезаписали бы
// сохранённую cookie друг друга.
type Manager struct {
	BaseURL  string
	Login    string
	Password string
	Store    CredentialStore
	Timeout  time.Duration

	mu sync.Mutex
}

func NewManager(baseURL, login, password string, store CredentialStore, timeout time.Duration) *Manager {
	return &Manager{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Login:    login,
		Password: password,
		Store:    store,
		Timeout:  timeout,
	}
}

// client без автоматических редиректов: 302 — это сигнал успеха логина,
// его нельзя отдавать транспорту.
func (m *Manager) client(jar http.CookieJar) *http.Client {
	return &http.Client{
		Timeout: m.Timeout,
		Jar:     jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Acquire выполняет полный цикл логина: GET login.aspx, извлечение скрытых
// полей формы, POST учётных данных, проверка редиректа и маркеров сессии.
// Успешная cookie сохраняется в CredentialStore и возвращается.
func (m *Manager) Acquire(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return "", fmt.Errorf("не удалось создать cookie jar: %w", err)
	}
	client := m.client(jar)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.BaseURL+loginPage, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("не удалось открыть страницу логина: %w", err)
	}
	html, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return "", fmt.Errorf("не удалось прочитать страницу логина: %w", err)
	}

	viewState := hiddenInput(string(html), "__VIEWSTATE")
	if viewState == "" {
		return "", &AuthError{Reason: "на login.aspx нет __VIEWSTATE (форма изменилась?)"}
	}

	form := url.Values{
		"__EVENTTARGET":     {"lbEnter"},
		"__EVENTARGUMENT":   {""},
		"__LASTFOCUS":       {""},
		"__VIEWSTATE":       {viewState},
		"TimeZone":          {"3"},
		"tbLogin":           {m.Login},
		"tbPassword":        {m.Password},
		"ddlLanguage":       {"ru-ru"},
		"CheckNewInterface": {"on"},
	}
	if v := hiddenInput(string(html), "__EVENTVALIDATION"); v != "" {
		form.Set("__EVENTVALIDATION", v)
	}
	if v := hiddenInput(string(html), "__VIEWSTATEGENERATOR"); v != "" {
		form.Set("__VIEWSTATEGENERATOR", v)
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodPost, m.BaseURL+loginPage, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Origin", m.BaseURL)
	req.Header.Set("Referer", m.BaseURL+loginPage)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err = client.Do(req)
	if err != nil {
		return "", fmt.Errorf("не удалось отправить форму логина: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusFound && resp.StatusCode != http.StatusSeeOther {
		return "", &AuthError{Reason: fmt.Sprintf("логин неуспешен: HTTP %d", resp.StatusCode)}
	}

	// Добираем редирект, чтобы портал докрутил сессию.
	if loc := resp.Header.Get("Location"); loc != "" {
		if req, err = http.NewRequestWithContext(ctx, http.MethodGet, m.BaseURL+loc, nil); err == nil {
			req.Header.Set("User-Agent", userAgent)
			if r, err := client.Do(req); err == nil {
				io.Copy(io.Discard, r.Body)
				r.Body.Close()
			}
		}
	}

	base, err := url.Parse(m.BaseURL)
	if err != nil {
		return "", err
	}
	cookieLine := cookieLineFromJar(jar, base)

	if !strings.Contains(cookieLine, sessionKey) {
		return "", &AuthError{Reason: "не получен ASP.NET_SessionId — сессия не установилась"}
	}
	if !strings.Contains(cookieLine, authKey) {
		return "", &AuthError{Reason: "не получен .ASPXAUTH — проверьте логин и пароль"}
	}

	if err := m.Store.Save(ctx, cookieLine); err != nil {
		return "", err
	}

	log.Info("Авторизация на портале выполнена, cookie сохранены")
	return cookieLine, nil
}

// EnsureValid возвращает заведомо рабочую cookie. Пустой кандидат или
// неудачная проба защищённой страницы ведут к новому логину. Транспортная
// ошибка пробы тоже ведёт к перелогину: доступность здесь важнее чистоты,
// это осознанный запасной путь, а не случайно проглоченная ошибка.
func (m *Manager) EnsureValid(ctx context.Context, candidate string) (string, error) {
	if candidate == "" {
		log.Debug("Cookie отсутствуют — выполняется логин")
		return m.Acquire(ctx)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.BaseURL+probePage, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Cookie", candidate)
	req.Header.Set("User-Agent", userAgent)

	resp, err := m.client(nil).Do(req)
	if err != nil {
		log.Debugf("Не удалось проверить cookie (%v) — выполняется перелогин", err)
		return m.Acquire(ctx)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	loc := strings.ToLower(resp.Header.Get("Location"))
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden ||
		strings.Contains(loc, "login.aspx") {
		log.Debug("Cookie протухли — выполняется перелогин")
		return m.Acquire(ctx)
	}

	return candidate, nil
}

// LoadStored отдаёт ранее сохранённую cookie, если она есть.
func (m *Manager) LoadStored(ctx context.Context) string {
	line, err := m.Store.Load(ctx)
	if err != nil {
		log.Warnf("Не удалось загрузить сохранённые cookie: %v", err)
		return ""
	}
	return strings.TrimSpace(line)
}

func hiddenInput(html, name string) string {
	re := regexp.MustCompile(`(?i)<input[^>]+name="` + regexp.QuoteMeta(name) + `"[^>]+value="([^"]*)"`)
	m := re.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	return m[1]
}

func cookieLineFromJar(jar http.CookieJar, base *url.URL) string {
	parts := []string{}
	for _, c := range jar.Cookies(base) {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/weather-lookup/internal/client"
	"github.com/kjstillabower/weather-lookup/internal/lifecycle"
	"github.com/kjstillabower/weather-lookup/internal/lookup"
	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/session"
	"github.com/kjstillabower/weather-lookup/internal/traffic"
)

var londonSnapshot = models.WeatherSnapshot{
	Location:    "London",
	Country:     models.Some("GB"),
	Temperature: 15.4,
	FeelsLike:   14.1,
	Humidity:    72,
	Description: models.Some("light rain"),
}

type mockWeatherClient struct {
	mu    sync.Mutex
	snap  models.WeatherSnapshot
	err   error
	block chan struct{} // if set, GetCurrentWeather waits for it or ctx.Done()
	calls []string
}

func (m *mockWeatherClient) GetCurrentWeather(ctx context.Context, city string) (models.WeatherSnapshot, error) {
	m.mu.Lock()
	m.calls = append(m.calls, city)
	block := m.block
	m.mu.Unlock()
	if block != nil {
		select {
		case <-ctx.Done():
			return models.WeatherSnapshot{}, ctx.Err()
		case <-block:
		}
	}
	return m.snap, m.err
}

func (m *mockWeatherClient) ValidateAPIKey(ctx context.Context) error { return nil }

func (m *mockWeatherClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type testServer struct {
	handler *Handler
	router  http.Handler
	store   *session.Store
}

func newTestServer(t *testing.T, c client.WeatherClient, logger *zap.Logger, requestTimeout time.Duration) *testServer {
	t.Helper()
	if logger == nil {
		logger = zap.NewNop()
	}
	store := session.NewStore(func() *lookup.Controller {
		return lookup.NewController(c, lookup.WithLogger(logger))
	}, time.Hour, 100)
	h := NewHandler(store, &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50, StartTime: time.Now()}, logger)
	return &testServer{handler: h, router: NewRouter(h, logger, requestTimeout), store: store}
}

// do sends a request through the full router, carrying the session cookie if set.
func (s *testServer) do(t *testing.T, method, target, contentType, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	t.Fatalf("response did not set %s cookie", SessionCookie)
	return nil
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) lookup.View {
	t.Helper()
	var v lookup.View
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode view: %v (body %q)", err, w.Body.String())
	}
	return v
}

type errorEnvelope struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

func TestGetPage_NewSessionShowsIdleWidget(t *testing.T) {
	s := newTestServer(t, &mockWeatherClient{}, nil, time.Second)

	w := s.do(t, "GET", "/", "", "", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("GET / status = %d, want 200", w.Code)
	}
	c := sessionCookie(t, w)
	if !c.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
	body := w.Body.String()
	for _, want := range []string{lookup.Title, lookup.InputPlaceholder, lookup.SubmitLabel, lookup.HintText} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, "⚠️") {
		t.Error("idle page should not show the error panel")
	}
}

func TestPostPage_SubmitsAndRedirects(t *testing.T) {
	mock := &mockWeatherClient{snap: londonSnapshot}
	s := newTestServer(t, mock, nil, time.Second)

	w := s.do(t, "POST", "/", "application/x-www-form-urlencoded", url.Values{"city": {"London"}}.Encode(), nil)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("POST / status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want /", loc)
	}
	if mock.callCount() != 1 {
		t.Errorf("upstream calls = %d, want 1", mock.callCount())
	}

	page := s.do(t, "GET", "/", "", "", sessionCookie(t, w)).Body.String()
	for _, want := range []string{"London, GB", "15°C", "Feels like: 14°C", "Humidity: 72%", "Light Rain", `value="London"`} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(page, lookup.HintText) {
		t.Error("result page should not show the hint")
	}
}

func TestPostPage_NotFoundShowsError(t *testing.T) {
	s := newTestServer(t, &mockWeatherClient{err: client.ErrLocationNotFound}, nil, time.Second)

	w := s.do(t, "POST", "/", "application/x-www-form-urlencoded", "city=Atlantis", nil)
	page := s.do(t, "GET", "/", "", "", sessionCookie(t, w)).Body.String()

	if !strings.Contains(page, "⚠️ City not found") {
		t.Errorf("page missing error panel:\n%s", page)
	}
}

func TestGetPage_EscapesInput(t *testing.T) {
	s := newTestServer(t, &mockWeatherClient{}, nil, time.Second)
	w := s.do(t, "PUT", "/api/query", "application/json", `{"query":"<script>alert(1)</script>"}`, nil)

	page := s.do(t, "GET", "/", "", "", sessionCookie(t, w)).Body.String()
	if strings.Contains(page, "<script>alert(1)</script>") {
		t.Error("page rendered raw query HTML")
	}
}

func TestPutQuery_StoresVerbatim(t *testing.T) {
	mock := &mockWeatherClient{}
	s := newTestServer(t, mock, nil, time.Second)

	w := s.do(t, "PUT", "/api/query", "application/json", `{"query":"  London "}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT /api/query status = %d, want 200", w.Code)
	}
	if v := decodeView(t, w); v.Input != "  London " || v.Phase != "idle" {
		t.Errorf("view = %+v, want verbatim input and idle phase", v)
	}

	v := decodeView(t, s.do(t, "GET", "/api/view", "", "", sessionCookie(t, w)))
	if v.Input != "  London " {
		t.Errorf("GET /api/view Input = %q, want verbatim", v.Input)
	}
	if mock.callCount() != 0 {
		t.Errorf("UpdateQuery triggered %d upstream calls, want 0", mock.callCount())
	}
}

func TestPutQuery_BadRequests(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"not json", `query=London`, "INVALID_BODY"},
		{"missing field", `{}`, "INVALID_BODY"},
		{"too long", `{"query":"` + strings.Repeat("a", 201) + `"}`, "INVALID_QUERY"},
		{"control char", `{"query":"Lon\u0000don"}`, "INVALID_QUERY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &mockWeatherClient{}, nil, time.Second)
			w := s.do(t, "PUT", "/api/query", "application/json", tt.body, nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			var env errorEnvelope
			if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
				t.Fatalf("decode error envelope: %v", err)
			}
			if env.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", env.Error.Code, tt.wantCode)
			}
			if env.Error.RequestID == "" || env.Error.RequestID != w.Header().Get("X-Correlation-ID") {
				t.Errorf("requestId = %q, want correlation ID %q", env.Error.RequestID, w.Header().Get("X-Correlation-ID"))
			}
		})
	}
}

func TestPostSubmit_EmptyQueryIsNoop(t *testing.T) {
	mock := &mockWeatherClient{}
	s := newTestServer(t, mock, nil, time.Second)
	w := s.do(t, "PUT", "/api/query", "application/json", `{"query":"   "}`, nil)

	w = s.do(t, "POST", "/api/submit?wait=true", "", "", sessionCookie(t, w))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if v := decodeView(t, w); v.Phase != "idle" {
		t.Errorf("Phase = %q, want idle", v.Phase)
	}
	if mock.callCount() != 0 {
		t.Errorf("upstream calls = %d, want 0", mock.callCount())
	}
}

func TestPostSubmit_WaitReturnsSettledView(t *testing.T) {
	s := newTestServer(t, &mockWeatherClient{snap: londonSnapshot}, nil, time.Second)
	w := s.do(t, "PUT", "/api/query", "application/json", `{"query":"London"}`, nil)

	w = s.do(t, "POST", "/api/submit?wait=true", "", "", sessionCookie(t, w))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	v := decodeView(t, w)
	if v.Phase != "success" || v.Result == nil {
		t.Fatalf("view = %+v, want success with result", v)
	}
	if v.Result.Location != "London, GB" || v.Result.Temperature != "15°C" {
		t.Errorf("result = %+v", v.Result)
	}
}

// TestPostSubmit_AsyncSurvivesClientDisconnect verifies the lookup outlives the
// request that started it.
func TestPostSubmit_AsyncSurvivesClientDisconnect(t *testing.T) {
	mock := &mockWeatherClient{snap: londonSnapshot, block: make(chan struct{})}
	s := newTestServer(t, mock, nil, time.Second)
	cookie := sessionCookie(t, s.do(t, "PUT", "/api/query", "application/json", `{"query":"London"}`, nil))

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("POST", "/api/submit", nil).WithContext(ctx)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	cancel()

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	v := decodeView(t, w)
	if v.Phase != "loading" || !v.SubmitDisabled || v.SubmitLabel != lookup.SubmitLabelActive {
		t.Errorf("view = %+v, want disabled loading view", v)
	}

	close(mock.block)
	deadline := time.Now().Add(2 * time.Second)
	for {
		v = decodeView(t, s.do(t, "GET", "/api/view", "", "", cookie))
		if v.Phase != "loading" || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if v.Phase != "success" {
		t.Errorf("Phase = %q (error %q), want success", v.Phase, v.Error)
	}
}

func TestPostSubmit_WaitTimeoutAnswersAccepted(t *testing.T) {
	mock := &mockWeatherClient{snap: londonSnapshot, block: make(chan struct{})}
	s := newTestServer(t, mock, nil, 20*time.Millisecond)
	defer drain(t, s, mock)
	cookie := sessionCookie(t, s.do(t, "PUT", "/api/query", "application/json", `{"query":"London"}`, nil))

	w := s.do(t, "POST", "/api/submit?wait=true", "", "", cookie)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	if v := decodeView(t, w); v.Phase != "loading" {
		t.Errorf("Phase = %q, want loading", v.Phase)
	}
}

// drain releases a blocked client and waits for its lookups to settle so they
// do not leak into later tests.
func drain(t *testing.T, s *testServer, mock *mockWeatherClient) {
	t.Helper()
	close(mock.block)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := waitUntil(ctx, 5*time.Millisecond, func() bool { return s.store.InFlight() == 0 }); err != nil {
		t.Errorf("lookups did not settle: %v", err)
	}
}

func TestSessions_AreIsolated(t *testing.T) {
	s := newTestServer(t, &mockWeatherClient{}, nil, time.Second)
	a := sessionCookie(t, s.do(t, "PUT", "/api/query", "application/json", `{"query":"Paris"}`, nil))
	b := sessionCookie(t, s.do(t, "PUT", "/api/query", "application/json", `{"query":"Tokyo"}`, nil))

	if a.Value == b.Value {
		t.Fatal("two visitors share a session")
	}
	if v := decodeView(t, s.do(t, "GET", "/api/view", "", "", a)); v.Input != "Paris" {
		t.Errorf("session A Input = %q, want Paris", v.Input)
	}
	if v := decodeView(t, s.do(t, "GET", "/api/view", "", "", b)); v.Input != "Tokyo" {
		t.Errorf("session B Input = %q, want Tokyo", v.Input)
	}
	if s.store.Len() != 2 {
		t.Errorf("store Len() = %d, want 2", s.store.Len())
	}
}

func TestGetHealth_Healthy(t *testing.T) {
	traffic.Reset()
	lifecycle.Reset()
	s := newTestServer(t, &mockWeatherClient{}, nil, time.Second)

	w := s.do(t, "GET", "/health", "", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "healthy" || resp["service"] != "weather-lookup" {
		t.Errorf("health = %v", resp)
	}
}

func TestGetHealth_ShuttingDown(t *testing.T) {
	traffic.Reset()
	lifecycle.BeginShutdown()
	t.Cleanup(lifecycle.Reset)
	s := newTestServer(t, &mockWeatherClient{}, nil, time.Second)

	w := s.do(t, "GET", "/health", "", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"shutting-down"`) {
		t.Errorf("body = %s, want shutting-down", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"drainingSeconds"`) {
		t.Errorf("body = %s, want drainingSeconds", w.Body.String())
	}
}

func TestGetHealth_DegradedOnLookupFailures(t *testing.T) {
	traffic.Reset()
	t.Cleanup(traffic.Reset)
	lifecycle.Reset()

	core, logs := observer.New(zapcore.InfoLevel)
	s := newTestServer(t, &mockWeatherClient{err: client.ErrUpstreamFailure}, zap.New(core), time.Second)

	if w := s.do(t, "GET", "/health", "", "", nil); w.Code != http.StatusOK {
		t.Fatalf("initial status = %d, want 200", w.Code)
	}

	cookie := sessionCookie(t, s.do(t, "PUT", "/api/query", "application/json", `{"query":"London"}`, nil))
	s.do(t, "POST", "/api/submit?wait=true", "", "", cookie)

	w := s.do(t, "GET", "/health", "", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"degraded"`) {
		t.Errorf("body = %s, want degraded", w.Body.String())
	}
	if logs.FilterMessage("health status transition").Len() != 1 {
		t.Errorf("expected one health transition log, got %d", logs.FilterMessage("health status transition").Len())
	}
}

func TestRouter_UnknownRouteAndMethod(t *testing.T) {
	s := newTestServer(t, &mockWeatherClient{}, nil, time.Second)

	w := s.do(t, "GET", "/nope", "", "", nil)
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "NOT_FOUND") {
		t.Errorf("GET /nope = %d %s", w.Code, w.Body.String())
	}
	w = s.do(t, "DELETE", "/api/view", "", "", nil)
	if w.Code != http.StatusMethodNotAllowed || !strings.Contains(w.Body.String(), "METHOD_NOT_ALLOWED") {
		t.Errorf("DELETE /api/view = %d %s", w.Code, w.Body.String())
	}
}

func TestRouter_ServesMetrics(t *testing.T) {
	s := newTestServer(t, &mockWeatherClient{}, nil, time.Second)
	s.do(t, "GET", "/api/view", "", "", nil)

	w := s.do(t, "GET", "/metrics", "", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "httpRequestsTotal") {
		t.Error("metrics output missing httpRequestsTotal")
	}
}

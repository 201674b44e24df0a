package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urbanflow/internal/config"
	"urbanflow/internal/delays"
	"urbanflow/internal/geocode"
	"urbanflow/internal/realtime"
	"urbanflow/internal/stops"
	"urbanflow/internal/storage"
	"urbanflow/internal/ztm"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type catalogFunc func(ctx context.Context) (ztm.StopCatalog, error)

func (f catalogFunc) FetchStopCatalog(ctx context.Context) (ztm.StopCatalog, error) { return f(ctx) }

type departuresFunc func(ctx context.Context, stopID int) ([]ztm.Departure, error)

func (f departuresFunc) FetchDepartures(ctx context.Context, stopID int) ([]ztm.Departure, error) {
	return f(ctx, stopID)
}

func intPtr(v int) *int { return &v }

func sampleCatalog() ztm.StopCatalog {
	return ztm.StopCatalog{
		"2024-01-15": {
			LastUpdate: "2024-01-15 04:00:00",
			Stops: []ztm.Stop{
				{StopID: 1667, StopCode: "01", StopName: "Miszewskiego", StopLat: 54.3800, StopLon: 18.6000},
				{StopID: 1668, StopCode: "02", StopName: "Miszewskiego", StopLat: 54.3803, StopLon: 18.6004},
				{StopID: 2001, StopCode: "01", StopName: "Brama Wyżynna", StopLat: 54.3525, StopLon: 18.6460},
				{StopID: 2, StopName: "Depot", Virtual: 1},
			},
		},
	}
}

type fakeGeocoder struct{}

func (fakeGeocoder) Search(ctx context.Context, query string) (geocode.Result, error) {
	switch query {
	case "Miszewskiego 1":
		return geocode.Result{Lat: 54.3800, Lon: 18.6000, DisplayName: "Miszewskiego, Gdańsk"}, nil
	case "down":
		return geocode.Result{}, errors.New("nominatim status 503")
	}
	return geocode.Result{}, geocode.ErrNoResult
}

type testEnv struct {
	h       *Handler
	router  http.Handler
	db      *storage.DB
	rt      *realtime.Store
	fetches atomic.Int32
}

func newTestEnv(t *testing.T, deps departuresFunc) *testEnv {
	t.Helper()
	env := &testEnv{}
	logger := testLogger()

	cache := stops.NewCache(catalogFunc(func(ctx context.Context) (ztm.StopCatalog, error) {
		env.fetches.Add(1)
		return sampleCatalog(), nil
	}), stops.Options{Location: time.UTC}, logger)

	if deps == nil {
		deps = func(ctx context.Context, stopID int) ([]ztm.Departure, error) { return nil, nil }
	}

	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	env.db = db

	env.rt = realtime.NewStore()

	cfg := config.Default()
	cfg.TokenSecret = string(testSecret)
	cfg.StreamInterval = time.Hour

	env.h = New(cache, delays.NewService(deps, logger), env.rt, db, fakeGeocoder{}, cfg, logger)
	env.router = testRouter(env.h)
	return env
}

// testRouter mirrors the server's routes with a minimal bearer auth check.
func testRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", h.Health)
	r.Get("/healthz", h.Healthz)
	r.Get("/debug/cache", h.CacheDebug)
	r.Route("/api", func(r chi.Router) {
		r.Get("/stops", h.ListStops)
		r.Get("/stops/search", h.SearchStops)
		r.Get("/stops/nearby", h.NearbyStops)
		r.Get("/stops/export.csv", h.ExportStops)
		r.Get("/stops/cache/stats", h.CacheStats)
		r.Delete("/stops/cache", h.ClearCache)
		r.Get("/stops/{stopId}", h.GetStop)
		r.Get("/stops/{stopId}/alerts", h.StopAlerts)
		r.Get("/delays/{stopId}", h.GetDelays)
		r.Get("/delays/{stopId}/export.csv", h.ExportDelays)
		r.Get("/delays/{stopId}/stream", h.StreamDelays)
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)
		r.Group(func(r chi.Router) {
			r.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					id := VerifyToken(BearerToken(r), h.TokenSecret())
					if id == 0 {
						writeError(w, http.StatusUnauthorized, "Access token is required")
						return
					}
					next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
				})
			})
			r.Get("/auth/me", h.Me)
			r.Get("/user-stops", h.ListUserStops)
			r.Post("/user-stops", h.AddUserStop)
			r.Put("/user-stops/{id}", h.RenameUserStop)
			r.Delete("/user-stops/{id}", h.DeleteUserStop)
		})
	})
	return r
}

func (env *testEnv) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestListStops(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "GET", "/api/stops", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 3, body["count"])

	env.do(t, "GET", "/api/stops", "", "")
	assert.EqualValues(t, 1, env.fetches.Load())
}

func TestSearchStops(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("short query is rejected without fetching", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/stops/search?q=M", "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeBody(t, rec)["error"], "at least 2")
		assert.EqualValues(t, 0, env.fetches.Load())
	})

	t.Run("matches by name", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/stops/search?q=miszew", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "miszew", body["query"])
		assert.EqualValues(t, 2, body["count"])
	})

	t.Run("virtual stops are filtered out", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/stops/search?q=depot", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 0, decodeBody(t, rec)["count"])
	})
}

func TestGetStop(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		path string
		code int
	}{
		{"/api/stops/1667", http.StatusOK},
		{"/api/stops/2", http.StatusNotFound},
		{"/api/stops/424", http.StatusNotFound},
		{"/api/stops/abc", http.StatusBadRequest},
		{"/api/stops/0", http.StatusBadRequest},
		{"/api/stops/100000", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := env.do(t, "GET", tt.path, "", "")
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}

	rec := env.do(t, "GET", "/api/stops/1667", "", "")
	stop := decodeBody(t, rec)["stop"].(map[string]any)
	assert.Equal(t, "Miszewskiego", stop["stopName"])
}

func TestNearbyStops(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "GET", "/api/stops/nearby?lat=54.38&lon=18.60&radius=300", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.EqualValues(t, 2, body["count"])
	first := body["stops"].([]any)[0].(map[string]any)
	assert.Equal(t, "0 m", first["distance"])
	assert.EqualValues(t, 1667, first["stop"].(map[string]any)["stopId"])

	for _, q := range []string{"lat=x&lon=18.6", "lat=54.38", "lat=91&lon=0", "lat=54&lon=18&radius=-1", "lat=54&lon=18&limit=0"} {
		t.Run(q, func(t *testing.T) {
			rec := env.do(t, "GET", "/api/stops/nearby?"+q, "", "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestNearbyStops_Address(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "GET", "/api/stops/nearby?address=Miszewskiego+1&radius=100", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 2, body["count"])
	assert.Equal(t, "Miszewskiego, Gdańsk", body["location"].(map[string]any)["displayName"])

	rec = env.do(t, "GET", "/api/stops/nearby?address=Atlantyda", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, "GET", "/api/stops/nearby?address=down", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	env.h.geo = nil
	rec = env.do(t, "GET", "/api/stops/nearby?address=Miszewskiego+1", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFormatDistance(t *testing.T) {
	tests := []struct {
		meters float64
		want   string
	}{
		{0, "0 m"},
		{49.6, "50 m"},
		{999, "999 m"},
		{1000, "1.0 km"},
		{1540, "1.5 km"},
		{12345, "12.3 km"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDistance(tt.meters))
		})
	}
}

func TestStopAlerts(t *testing.T) {
	env := newTestEnv(t, nil)
	past := time.Now().Add(-time.Hour)
	env.rt.Replace([]realtime.Alert{
		{ID: "a1", Header: "Objazd", StopIDs: []int{1667}},
		{ID: "a2", Header: "Old", StopIDs: []int{1667}, Periods: []realtime.Period{{End: &past}}},
		{ID: "a3", Header: "Elsewhere", StopIDs: []int{2001}},
	}, time.Now())

	rec := env.do(t, "GET", "/api/stops/1667/alerts", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 1667, body["stopId"])
	require.EqualValues(t, 1, body["count"])
	assert.Equal(t, "a1", body["alerts"].([]any)[0].(map[string]any)["id"])
}

func TestCacheStatsAndClear(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, "GET", "/api/stops", "", "")
	env.do(t, "GET", "/api/stops", "", "")

	rec := env.do(t, "GET", "/api/stops/cache/stats", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st stops.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, []string{stops.CacheKey}, st.Keys)
	assert.EqualValues(t, 1, st.Hits)
	assert.EqualValues(t, 1, st.Misses)
	require.NotNil(t, st.Snapshot)
	assert.Equal(t, 3, st.Snapshot.Count)

	rec = env.do(t, "DELETE", "/api/stops/cache", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody(t, rec)["stats"].(map[string]any)
	assert.Empty(t, stats["keys"])
	assert.EqualValues(t, 1, stats["deletes"])

	env.do(t, "GET", "/api/stops", "", "")
	assert.EqualValues(t, 2, env.fetches.Load())
}

func TestCacheDebug(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, "GET", "/api/stops", "", "")

	rec := env.do(t, "GET", "/debug/cache", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "<th>Misses</th><td>1</td>")
	assert.Contains(t, rec.Body.String(), "<th>Service date</th><td>2024-01-15</td>")
	assert.Contains(t, rec.Body.String(), "<th>Coalesced</th><td>0</td>")
	assert.NotContains(t, rec.Body.String(), "No snapshot cached.")
}

func TestCacheDebug_Cold(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "GET", "/debug/cache", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<th>Keys</th><td>0</td>")
	assert.Contains(t, rec.Body.String(), "<p>No snapshot cached.</p>")
	assert.Equal(t, int32(0), env.fetches.Load())
}

func TestGetDelays(t *testing.T) {
	env := newTestEnv(t, func(ctx context.Context, stopID int) ([]ztm.Departure, error) {
		assert.Equal(t, 1667, stopID)
		return []ztm.Departure{
			{ID: "T1", RouteShortName: "2", DelayInSeconds: intPtr(90), Status: "REALTIME"},
			{ID: "T2", RouteShortName: "3", DelayInSeconds: intPtr(-30), Status: "REALTIME"},
			{ID: "T3", RouteShortName: "8", DelayInSeconds: intPtr(240), Status: "REALTIME", VehicleCode: intPtr(1031)},
		}, nil
	})

	rec := env.do(t, "GET", "/api/delays/1667", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp delaysResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1667, resp.StopID)
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, "+1 min 30 s", resp.Delays[0].DelayFormatted)
	assert.Equal(t, delays.Slight, resp.Delays[0].Severity)
	assert.Equal(t, "-30 s", resp.Delays[1].DelayFormatted)
	assert.Equal(t, delays.OnTime, resp.Delays[1].Severity)
	assert.Equal(t, delays.Late, resp.Delays[2].Severity)
	assert.Equal(t, 1, resp.Summary.Late)
	assert.Equal(t, "8", resp.Summary.WorstRoute)
	assert.WithinDuration(t, time.Now(), resp.LastUpdate, time.Minute)
}

func TestGetDelays_NoLiveFeed(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "GET", "/api/delays/1667", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 0, body["count"])
	assert.Equal(t, []any{}, body["delays"])
}

func TestGetDelays_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"timeout", fmt.Errorf("departures: %w", ztm.ErrTimeout), http.StatusGatewayTimeout, "ZTM API request timeout"},
		{"unavailable", fmt.Errorf("departures: %w: HTTP 502", ztm.ErrUnavailable), http.StatusServiceUnavailable, "ZTM API is currently unavailable"},
		{"malformed", fmt.Errorf("decode: %w", ztm.ErrMalformed), http.StatusServiceUnavailable, "ZTM API is currently unavailable"},
		{"unknown", fmt.Errorf("boom <html>secret</html>"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, func(ctx context.Context, stopID int) ([]ztm.Departure, error) {
				return nil, tt.err
			})
			rec := env.do(t, "GET", "/api/delays/1667", "", "")
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.msg, decodeBody(t, rec)["error"])
		})
	}
}

func TestExportDelays(t *testing.T) {
	env := newTestEnv(t, func(ctx context.Context, stopID int) ([]ztm.Departure, error) {
		return []ztm.Departure{{ID: "T1", RouteShortName: "2", Headsign: "Oliwa", DelayInSeconds: intPtr(90)}}, nil
	})

	rec := env.do(t, "GET", "/api/delays/1667/export.csv", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "delays-1667.csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "stop_id,departure_id,route"))
	assert.Contains(t, lines[1], "Oliwa")
}

func TestExportStops(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "GET", "/api/stops/export.csv", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 4)
}

func TestStreamDelays(t *testing.T) {
	env := newTestEnv(t, func(ctx context.Context, stopID int) ([]ztm.Departure, error) {
		return []ztm.Departure{{ID: "T1", RouteShortName: "2", DelayInSeconds: intPtr(0)}}, nil
	})
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/api/delays/1667/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	require.True(t, sc.Scan())
	assert.Equal(t, "event: delays", sc.Text())
	require.True(t, sc.Scan())
	require.True(t, strings.HasPrefix(sc.Text(), "data: "))

	var payload delaysResponse
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(sc.Text(), "data: ")), &payload))
	assert.Equal(t, 1667, payload.StopID)
	require.Len(t, payload.Delays, 1)
	assert.Equal(t, "Punktualnie", payload.Delays[0].DelayFormatted)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "GET", "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "connected", body["database"])
	assert.Equal(t, false, body["cache"].(map[string]any)["cached"])

	env.db.Close()
	rec = env.do(t, "GET", "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unreachable", decodeBody(t, rec)["database"])

	rec = env.do(t, "GET", "/healthz", "", "")
	assert.Equal(t, "ok", rec.Body.String())
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	register := `{"username":"kasia_g","email":" Kasia@Example.PL ","password":"Tramwaj123"}`
	rec := env.do(t, "POST", "/api/auth/register", register, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	user := body["user"].(map[string]any)
	assert.Equal(t, "kasia@example.pl", user["email"])
	assert.NotContains(t, user, "PasswordHash")
	require.NotEmpty(t, body["token"])

	t.Run("duplicate email", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/auth/register", `{"username":"other","email":"kasia@example.pl","password":"Tramwaj123"}`, "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "User with this email already exists", decodeBody(t, rec)["error"])
	})

	t.Run("duplicate username", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/auth/register", `{"username":"kasia_g","email":"k2@example.pl","password":"Tramwaj123"}`, "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "Username is already taken", decodeBody(t, rec)["error"])
	})

	t.Run("weak password", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/auth/register", `{"username":"piotr","email":"p@example.pl","password":"tramwaj123"}`, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("login", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/auth/login", `{"email":"KASIA@example.pl","password":"Tramwaj123"}`, "")
		require.Equal(t, http.StatusOK, rec.Code)
		token := decodeBody(t, rec)["token"].(string)

		rec = env.do(t, "GET", "/api/auth/me", "", token)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "kasia_g", decodeBody(t, rec)["user"].(map[string]any)["username"])
	})

	t.Run("bad credentials", func(t *testing.T) {
		for _, b := range []string{
			`{"email":"kasia@example.pl","password":"Wrong1234"}`,
			`{"email":"nobody@example.pl","password":"Tramwaj123"}`,
		} {
			rec := env.do(t, "POST", "/api/auth/login", b, "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Invalid email or password", decodeBody(t, rec)["error"])
		}
		rec := env.do(t, "POST", "/api/auth/login", `{"email":"kasia@example.pl"}`, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("me without token", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/auth/me", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestUserStops(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "POST", "/api/auth/register", `{"username":"kasia","email":"kasia@example.pl","password":"Tramwaj123"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	token := decodeBody(t, rec)["token"].(string)

	rec = env.do(t, "POST", "/api/user-stops", `{"stopId":1667,"stopName":"  Dom  "}`, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	saved := decodeBody(t, rec)["stop"].(map[string]any)
	assert.Equal(t, "Dom", saved["stopName"])
	id := int64(saved["id"].(float64))

	t.Run("name falls back to catalog", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/user-stops", `{"stopId":"2001"}`, token)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, "Brama Wyżynna", decodeBody(t, rec)["stop"].(map[string]any)["stopName"])
	})

	t.Run("duplicate", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/user-stops", `{"stopId":1667,"stopName":"Again"}`, token)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "This stop is already in your list", decodeBody(t, rec)["error"])
	})

	t.Run("invalid input", func(t *testing.T) {
		for _, b := range []string{`{"stopId":0,"stopName":"Dom"}`, `{"stopId":1669,"stopName":"D"}`, `not json`} {
			rec := env.do(t, "POST", "/api/user-stops", b, token)
			assert.Equal(t, http.StatusBadRequest, rec.Code, b)
		}
	})

	t.Run("list newest first", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/user-stops", "", token)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		require.EqualValues(t, 2, body["count"])
		assert.EqualValues(t, 2001, body["stops"].([]any)[0].(map[string]any)["stopId"])
	})

	t.Run("rename", func(t *testing.T) {
		rec := env.do(t, "PUT", fmt.Sprintf("/api/user-stops/%d", id), `{"stopName":"Praca"}`, token)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Praca", decodeBody(t, rec)["stop"].(map[string]any)["stopName"])

		rec = env.do(t, "PUT", "/api/user-stops/9999", `{"stopName":"Praca"}`, token)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("other users cannot touch it", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/auth/register", `{"username":"marek","email":"marek@example.pl","password":"Tramwaj123"}`, "")
		require.Equal(t, http.StatusCreated, rec.Code)
		other := decodeBody(t, rec)["token"].(string)

		rec = env.do(t, "DELETE", fmt.Sprintf("/api/user-stops/%d", id), "", other)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rec := env.do(t, "DELETE", fmt.Sprintf("/api/user-stops/%d", id), "", token)
		require.Equal(t, http.StatusOK, rec.Code)
		rec = env.do(t, "DELETE", fmt.Sprintf("/api/user-stops/%d", id), "", token)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec = env.do(t, "DELETE", "/api/user-stops/abc", "", token)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("requires token", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/user-stops", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

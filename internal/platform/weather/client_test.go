package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/weatherbot/internal/domain"
)

func TestForecast(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		assert.Equal(t, "fahrenheit", r.URL.Query().Get("temperature_unit"))
		assert.Equal(t, "2026-03-18", r.URL.Query().Get("start_date"))
		w.Write([]byte(`{"daily":{"time":["2026-03-18"],"temperature_2m_max":[78.4]}}`))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second, time.Minute)
	date := time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC)

	fc, err := client.Forecast(context.Background(), "NYC", date)
	require.NoError(t, err)
	assert.Equal(t, "NYC", fc.City)
	assert.Equal(t, 78.4, fc.PredictedHigh)

	// A second call inside the TTL is served from cache.
	_, err = client.Forecast(context.Background(), "nyc", date)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestForecastEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"daily":{"time":[],"temperature_2m_max":[]}}`))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second, time.Minute)
	_, err := client.Forecast(context.Background(), "NYC", time.Now())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestForecastUnknownCity(t *testing.T) {
	client := New("http://127.0.0.1:0", time.Second, time.Minute)
	_, err := client.Forecast(context.Background(), "Gotham", time.Now())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestObservedMax(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("current_weather"))
		assert.Equal(t, "temperature_2m", r.URL.Query().Get("hourly"))
		// The day peaked at 84.1 around noon; by 18:30 it has cooled to
		// 78.9. Hours after the current time are forecast values.
		w.Write([]byte(`{
			"current_weather":{"temperature":78.9,"time":"2026-03-18T18:30"},
			"hourly":{
				"time":["2026-03-18T10:00","2026-03-18T12:00","2026-03-18T14:00","2026-03-18T16:00","2026-03-18T18:00","2026-03-18T20:00"],
				"temperature_2m":[75.0,82.3,84.1,83.0,79.5,88.0]
			}
		}`))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second, time.Minute)
	summary, err := client.ObservedMax(context.Background(), "miami")
	require.NoError(t, err)
	assert.Equal(t, "miami", summary.City)
	assert.Equal(t, 78.9, summary.LatestTemp)
	assert.Equal(t, 84.1, summary.CurrentMax, "max comes from observed hours, not the forecast tail")
	assert.Equal(t, 5, summary.Count)
	assert.Equal(t, 18, summary.At.Hour())
}

func TestLookupCoordsCaseInsensitive(t *testing.T) {
	a, err := lookupCoords("NYC")
	require.NoError(t, err)
	b, err := lookupCoords("nyc")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

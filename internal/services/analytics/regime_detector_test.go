package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeFlow/internal/domain/models"
	domsvc "TradeFlow/internal/domain/service"
)

func TestClassifySuccess(t *testing.T) {
	var got regimeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/detect_regime", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"state":2,"regime":"bull","confidence":0.81}`))
	}))
	defer srv.Close()

	c := NewHTTPRegimeClassifier(srv.URL+"/", time.Second)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	obs, err := c.Classify(context.Background(), models.MarketCrypto, "BTCUSDT", models.TF5m)
	require.NoError(t, err)
	assert.Equal(t, models.RegimeBull, obs.Label)
	assert.Equal(t, 2, obs.State)
	assert.Equal(t, 0.81, obs.Confidence)
	assert.Equal(t, models.TF5m, obs.Timeframe)
	assert.Equal(t, now, obs.ObservedAt)
	assert.Equal(t, "crypto_5m", got.ModelName)
	assert.Equal(t, "BTCUSDT", got.Symbol)
}

func TestClassifyErrorMarker(t *testing.T) {
	for name, handler := range map[string]http.HandlerFunc{
		"ok with error": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"error":"insufficient data"}`))
		},
		"4xx with error": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":"model not loaded"}`))
		},
		"unknown label": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"state":1,"regime":"moon","confidence":0.9}`))
		},
		"missing state": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"regime":"BEAR","confidence":0.9}`))
		},
		"confidence above one": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"state":1,"regime":"BEAR","confidence":1.7}`))
		},
		"negative confidence": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"state":1,"regime":"BEAR","confidence":-0.2}`))
		},
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()
			_, err := NewHTTPRegimeClassifier(srv.URL, time.Second).Classify(context.Background(), models.MarketCrypto, "BTCUSDT", models.TF1m)
			assert.ErrorIs(t, err, domsvc.ErrNoRegime)
		})
	}
}

func TestClassifyRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"state":0,"regime":"SIDEWAYS","confidence":0.7}`))
	}))
	defer srv.Close()

	obs, err := NewHTTPRegimeClassifier(srv.URL, time.Second).Classify(context.Background(), models.MarketCrypto, "BTCUSDT", models.TF1h)
	require.NoError(t, err)
	assert.Equal(t, models.RegimeSideways, obs.Label)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClassifyTransportFailureIsNotNoRegime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPRegimeClassifier(srv.URL, time.Second).Classify(context.Background(), models.MarketCrypto, "BTCUSDT", models.TF1m)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domsvc.ErrNoRegime)
}

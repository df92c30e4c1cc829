package health

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"spot_bot/internal/models"
	"spot_bot/internal/modules/health/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, srv *httptest.Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestHealthEndpoints(t *testing.T) {
	state := service.NewState()
	srv := httptest.NewServer(NewMux(state))
	defer srv.Close()

	code, _ := get(t, srv, "/livez")
	assert.Equal(t, http.StatusOK, code)

	code, _ = get(t, srv, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "no cycle completed yet", state.Status())

	state.CycleDone(models.CycleResult{
		Action:   models.ActionOpened,
		Position: models.Tracking(decimal.RequireFromString("0.192")),
		Snapshot: models.MarketSnapshot{Mid: decimal.RequireFromString("0.2")},
	})
	state.CycleFailed(errors.New("gateway fault: timeout"))

	code, _ = get(t, srv, "/readyz")
	assert.Equal(t, http.StatusOK, code)

	code, body := get(t, srv, "/healthz")
	require.Equal(t, http.StatusOK, code)
	var rep service.Report
	require.NoError(t, json.Unmarshal([]byte(body), &rep))
	assert.True(t, rep.Ready)
	assert.Equal(t, "TRACKING", rep.Position)
	assert.Equal(t, "0.192", rep.StopLoss)
	assert.Equal(t, "opened", rep.LastAction)
	assert.Equal(t, 1, rep.Failures)
	assert.NotZero(t, rep.LastTickUnix)

	assert.Contains(t, state.Status(), "TRACKING SL: 0.192")
	assert.Contains(t, state.Status(), "failing x1")

	code, body = get(t, srv, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "go_goroutines")
}

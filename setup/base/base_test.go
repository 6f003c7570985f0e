package base_test

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrix-org/eventview/internal/httputil"
	"github.com/matrix-org/eventview/internal/sqlutil"
	basepkg "github.com/matrix-org/eventview/setup/base"
	"github.com/matrix-org/eventview/setup/config"
	"github.com/matrix-org/eventview/setup/process"
	"github.com/matrix-org/eventview/test"
)

func startServer(t *testing.T, cfg *config.EventView, dbs ...*sql.DB) (string, *process.ProcessContext) {
	t.Helper()
	processCtx := process.NewProcessContext()
	routers := httputil.NewRouters()

	// hack: create a server and close it immediately, just to get a random port assigned
	s := httptest.NewServer(nil)
	s.Close()

	go basepkg.SetupAndServeHTTP(processCtx, cfg, routers, config.HTTPAddress(s.URL), dbs...)
	t.Cleanup(func() {
		processCtx.ShutdownEventView()
		processCtx.WaitForComponentsToFinish()
	})

	// wait for the listener to come up
	require.Eventually(t, func() bool {
		resp, err := http.Get(s.URL + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return true
	}, time.Second*5, time.Millisecond*10)
	return s.URL, processCtx
}

func TestHealth(t *testing.T) {
	cfg := config.EventView{}
	cfg.Defaults(true)

	connStr, close := test.PrepareDBConnectionString(t, test.DBTypeSQLite)
	defer close()
	db, err := sqlutil.Open(&config.DatabaseOptions{ConnectionString: config.DataSource(connStr)}, sqlutil.NewExclusiveWriter())
	require.NoError(t, err)

	url, processCtx := startServer(t, &cfg, db)

	var health struct {
		Code     int  `json:"code"`
		Degraded bool `json:"degraded"`
	}
	resp, err := http.Get(url + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	_ = resp.Body.Close()
	assert.False(t, health.Degraded)

	// a closed database fails the ping and degrades the process
	require.NoError(t, db.Close())
	resp, err = http.Get(url + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	_ = resp.Body.Close()
	assert.True(t, health.Degraded)
	assert.True(t, processCtx.IsDegraded())
}

func TestMetricsBasicAuth(t *testing.T) {
	cfg := config.EventView{}
	cfg.Defaults(true)
	cfg.Global.Metrics.Enabled = true

	url, _ := startServer(t, &cfg)

	resp, err := http.Get(url + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, url+"/metrics", nil)
	require.NoError(t, err)
	req.SetBasicAuth(cfg.Global.Metrics.BasicAuth.Username, cfg.Global.Metrics.BasicAuth.Password)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUnknownPath(t *testing.T) {
	cfg := config.EventView{}
	cfg.Defaults(true)

	url, _ := startServer(t, &cfg)

	for _, path := range []string{"/", "/_eventview/v1/unknown"} {
		resp, err := http.Get(url + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

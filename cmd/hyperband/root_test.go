package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"gotest.tools/assert"

	"github.com/determined-ai/hyperband/internal/config"
	"github.com/determined-ai/hyperband/internal/prom"
	"github.com/determined-ai/hyperband/pkg/model"
	"github.com/determined-ai/hyperband/pkg/searcher"
)

func TestUnmarshalConfigurationViaViper(t *testing.T) {
	raw := `
log:
  level: debug
hyperband:
  max_resource: 81
  eta: 3
  skip_last: 1
simulation:
  seed: 7
  noise: 0
  unit_duration: 10ms
retry:
  max_retries: 3
  initial_interval: 1s
  max_interval: 30s
trainer_timeout: 2m
`
	expected := config.DefaultConfig()
	expected.Log.Level = "debug"
	expected.Hyperband = model.HyperbandConfig{MaxResource: 81, Eta: 3, SkipLast: 1}
	expected.Simulation.Seed = 7
	expected.Simulation.Noise = 0
	expected.Simulation.UnitDuration = model.Duration(10 * time.Millisecond)
	expected.Retry.MaxRetries = 3
	expected.Retry.InitialInterval = model.Duration(time.Second)
	expected.Retry.MaxInterval = model.Duration(30 * time.Second)
	expected.TrainerTimeout = model.Duration(2 * time.Minute)
	assert.NilError(t, expected.Resolve())

	err := mergeConfigBytesIntoViper([]byte(raw))
	assert.NilError(t, err)
	c, err := getConfig(v.AllSettings())
	assert.NilError(t, err)
	assert.DeepEqual(t, c, expected)
}

func TestConfigKey(t *testing.T) {
	key := configKey{"hyperband", "max-resource"}
	assert.Equal(t, key.FlagName(), "hyperband-max-resource")
	assert.Equal(t, key.EnvName(), "HYPERBAND_HYPERBAND_MAX_RESOURCE")
	assert.Equal(t, key.AccessPath(), "hyperband..max_resource")
}

func testConfig(maxResource int) *config.Config {
	c := config.DefaultConfig()
	c.Hyperband.MaxResource = maxResource
	c.Simulation.Noise = 0
	return c
}

func TestRunSearch(t *testing.T) {
	var out bytes.Buffer
	c := testConfig(9)
	c.RunName = "test-run"
	assert.NilError(t, runSearch(context.Background(), c, &out))

	var summary searcher.Summary
	assert.NilError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, summary.Name, "test-run")
	assert.Equal(t, summary.Configurations, 15)
	assert.Equal(t, summary.TrainerCalls, 3)
	assert.Equal(t, len(summary.Rounds), 3)
	assert.Equal(t, summary.Progress, 1.0)
	assert.Assert(t, summary.Best != nil)
	assert.Equal(t, len(summary.BracketBest), 3)
}

func TestRunSearchCandidatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candidates.yaml")
	assert.NilError(t, os.WriteFile(path, []byte("- name: a\n- name: b\n"), 0o600))

	c := testConfig(9)
	c.Candidates = path
	err := runSearch(context.Background(), c, &bytes.Buffer{})
	var cerr *searcher.ConfigurationError
	assert.Assert(t, errors.As(err, &cerr), "unexpected error: %v", err)
}

func TestPrintSchedule(t *testing.T) {
	schedule, err := searcher.NewSchedule(model.HyperbandConfig{MaxResource: 9, Eta: 3})
	assert.NilError(t, err)

	var out bytes.Buffer
	assert.NilError(t, printSchedule(&out, schedule))
	lines := strings.Split(out.String(), "\n")
	assert.Assert(t, strings.HasPrefix(lines[0], "BRACKET"))
	assert.Assert(t, strings.Contains(out.String(), "total configurations: 15"))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestPrintScheduleWriteError(t *testing.T) {
	schedule, err := searcher.NewSchedule(model.HyperbandConfig{MaxResource: 9, Eta: 3})
	assert.NilError(t, err)
	assert.ErrorContains(t, printSchedule(failingWriter{}, schedule), "disk full")
}

func TestMetricsServer(t *testing.T) {
	registry := prometheus.NewRegistry()
	assert.NilError(t, prom.Register(registry))
	e := newMetricsServer(registry)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, rec.Body.String(), "ok")

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Assert(t, strings.Contains(rec.Body.String(), "hyperband_search_trainer_errors_total"))
}

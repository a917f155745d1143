package resilience_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onemap/onemap/internal/provider/resilience"
)

func register(t *testing.T, registry *resilience.Registry, names ...string) map[string]*resilience.Client {
	t.Helper()
	clients := make(map[string]*resilience.Client, len(names))
	for _, name := range names {
		cfg := resilience.DefaultClientConfig(name)
		cfg.Registry = registry
		cfg.InitialInterval = time.Millisecond
		cfg.MaxInterval = 5 * time.Millisecond
		clients[name] = resilience.NewClient(cfg)
	}
	return clients
}

func call(t *testing.T, client *resilience.Client, url string) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, http.NoBody)
	require.NoError(t, err)
	if resp, _ := client.Do(req); resp != nil {
		resp.Body.Close()
	}
}

func TestRegistry_NewClientRegistersItself(t *testing.T) {
	registry := resilience.NewRegistry()
	clients := register(t, registry, "dispatch")

	assert.Equal(t, 1, registry.ProviderCount())
	assert.Equal(t, "dispatch", clients["dispatch"].Name())

	health := registry.GetHealth("dispatch")
	require.NotNil(t, health)
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.Equal(t, resilience.StatusHealthy, health.Status())
	assert.Nil(t, health.LastSuccessAt)
	assert.Nil(t, health.LastFailureAt)

	registry.Unregister("dispatch")
	assert.Zero(t, registry.ProviderCount())
	assert.Nil(t, registry.GetHealth("dispatch"))
}

func TestRegistry_CallsStampOutcomes(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	registry := resilience.NewRegistry()
	client := register(t, registry, "dispatch")["dispatch"]

	call(t, client, ok.URL)
	health := registry.GetHealth("dispatch")
	require.NotNil(t, health.LastSuccessAt)
	assert.WithinDuration(t, time.Now(), *health.LastSuccessAt, time.Second)
	assert.Empty(t, health.LastError)

	call(t, client, broken.URL)
	health = registry.GetHealth("dispatch")
	require.NotNil(t, health.LastFailureAt)
	assert.NotEmpty(t, health.LastError)
}

func TestRegistry_ManualRecords(t *testing.T) {
	registry := resilience.NewRegistry()
	register(t, registry, "dispatch")

	registry.RecordFailure("dispatch", assert.AnError)
	registry.RecordSuccess("dispatch")

	health := registry.GetHealth("dispatch")
	require.NotNil(t, health.LastSuccessAt)
	require.NotNil(t, health.LastFailureAt)
	assert.Equal(t, assert.AnError.Error(), health.LastError)

	assert.NotPanics(t, func() {
		registry.RecordSuccess("nonexistent")
		registry.RecordFailure("nonexistent", assert.AnError)
	})
	assert.Nil(t, registry.GetHealth("nonexistent"))
}

func TestRegistry_SortedViews(t *testing.T) {
	registry := resilience.NewRegistry()
	assert.Empty(t, registry.GetProviderNames())

	register(t, registry, "geotab", "dispatch-backup", "dispatch")

	assert.Equal(t, []string{"dispatch", "dispatch-backup", "geotab"}, registry.GetProviderNames())

	all := registry.GetAllHealth()
	require.Len(t, all, 3)
	for i, name := range []string{"dispatch", "dispatch-backup", "geotab"} {
		assert.Equal(t, name, all[i].Name)
		assert.True(t, all[i].IsHealthy())
	}
	assert.NotNil(t, resilience.GlobalRegistry)
}

func TestProviderHealth_States(t *testing.T) {
	tests := []struct {
		state      gobreaker.State
		isHealthy  bool
		isDegraded bool
		isUnhealth bool
		status     string
	}{
		{gobreaker.StateClosed, true, false, false, resilience.StatusHealthy},
		{gobreaker.StateHalfOpen, false, true, false, resilience.StatusDegraded},
		{gobreaker.StateOpen, false, false, true, resilience.StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			h := &resilience.ProviderHealth{CircuitState: tt.state}
			assert.Equal(t, tt.isHealthy, h.IsHealthy())
			assert.Equal(t, tt.isDegraded, h.IsDegraded())
			assert.Equal(t, tt.isUnhealth, h.IsUnhealthy())
			assert.Equal(t, tt.status, h.Status())
		})
	}
}

func TestRegistry_Overall(t *testing.T) {
	registry := resilience.NewRegistry()
	assert.Equal(t, resilience.StatusHealthy, registry.Overall())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	healthy := resilience.DefaultClientConfig("geotab")
	healthy.Registry = registry
	_ = resilience.NewClient(healthy)

	failing := resilience.DefaultClientConfig("dispatch")
	failing.Registry = registry
	failing.MaxRetries = 5
	failing.InitialInterval = time.Millisecond
	failing.MaxInterval = 5 * time.Millisecond
	client := resilience.NewClient(failing)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err)
	resp, _ := client.Do(req)
	if resp != nil {
		resp.Body.Close()
	}

	assert.Equal(t, gobreaker.StateOpen, client.CircuitBreakerState())
	assert.Equal(t, resilience.StatusUnhealthy, registry.Overall())
}

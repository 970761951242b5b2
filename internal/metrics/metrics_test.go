package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.CyclesTotal.Inc()
	m.Inserted.WithLabelValues("C1").Add(2)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "hopwatch_cycles_total 1")
	assert.Contains(t, string(body), `hopwatch_transactions_new_total{card_id="C1"} 2`)
}

func TestIndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.CyclesTotal.Inc()
	// No shared default registry, so b is untouched.
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "hopwatch_cycles_total 0")
}

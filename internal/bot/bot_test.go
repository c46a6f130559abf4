package bot

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretTokenStable(t *testing.T) {
	a := secretToken("123456:ABC-def_ghijk")
	assert.Equal(t, a, secretToken("123456:ABC-def_ghijk"))
	assert.Equal(t, "scriptguard_webhook_hijk", secretToken("hijk"))
	assert.NotContains(t, secretToken("12:ab-cd:ef"), ":")
}

func TestMetricsEndpoint(t *testing.T) {
	s := NewServer("127.0.0.1:0", "", "")
	s.HandleMetrics("")

	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

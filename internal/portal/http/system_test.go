package http

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/blob"
	"github.com/aussiebroadwan/ledgerdesk/pkg/portalsdk"
	"github.com/stretchr/testify/require"
)

func TestLivez(t *testing.T) {
	e := newEnv(t, "doc-key")

	rec := e.do(t, http.MethodGet, "/livez", nil, noAuth)
	require.Equal(t, http.StatusOK, rec.Code)
	h := decode[portalsdk.HealthResponse](t, rec)
	require.Equal(t, "ok", h.Status)
	require.Equal(t, "test", h.Version)
	require.Nil(t, h.Checks)
}

func TestReadyz(t *testing.T) {
	e := newEnv(t, "doc-key")

	rec := e.do(t, http.MethodGet, "/readyz", nil, noAuth)
	require.Equal(t, http.StatusOK, rec.Code)
	h := decode[portalsdk.HealthResponse](t, rec)
	require.Equal(t, "ok", h.Status)
	require.Equal(t, &portalsdk.HealthChecks{Database: "ok", Storage: "ok", Crypto: "ok"}, h.Checks)
}

func TestReadyzWithoutDocumentKey(t *testing.T) {
	e := newEnv(t, "")

	rec := e.do(t, http.MethodGet, "/readyz", nil, noAuth)
	require.Equal(t, http.StatusOK, rec.Code, "a missing key degrades but does not fail readiness")
	h := decode[portalsdk.HealthResponse](t, rec)
	require.Equal(t, "degraded", h.Status)
	require.True(t, strings.HasPrefix(h.Checks.Crypto, "error"))
	require.Equal(t, "ok", h.Checks.Database)
}

func TestReadyzStorageDown(t *testing.T) {
	root := filepath.Join(t.TempDir(), "docs")
	require.NoError(t, os.Mkdir(root, 0o700))
	blobs, err := blob.NewLocalStore(root)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(root))

	e := newEnv(t, "doc-key")
	h := ReadyzHandler(e.router.startTime, "test", e.store, blobs, e.router.sealer)

	rec := e.serve(t, h, http.MethodGet, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.True(t, strings.HasPrefix(decode[portalsdk.HealthResponse](t, rec).Checks.Storage, "error"))
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t, "doc-key")
	e.do(t, http.MethodGet, "/livez", nil, noAuth)

	rec := e.do(t, http.MethodGet, "/metrics", nil, noAuth)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `route="GET /livez"`)
}

func TestSwaggerServed(t *testing.T) {
	e := newEnv(t, "doc-key")

	rec := e.do(t, http.MethodGet, "/swagger/doc.json", nil, noAuth)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "/v1/mobile/refresh")
}

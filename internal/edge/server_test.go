package edge

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"azchat/internal/blob"
	"azchat/internal/config"
	"azchat/internal/search/edgefn"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

type azureCall struct {
	path string
	key  string
	body map[string]any
}

func fakeAzure(t *testing.T, status int, reply string) (*httptest.Server, *azureCall) {
	t.Helper()
	call := &azureCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call.path = r.URL.Path
		call.key = r.Header.Get("api-key")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &call.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, call
}

func TestCORS(t *testing.T) {
	s := NewServer(config.EdgeConfig{}, zerolog.Nop())

	t.Run("Should answer preflight with an empty 200", func(t *testing.T) {
		w := do(t, s.Handler(), http.MethodOptions, edgefn.SearchPath, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type, Authorization, X-Client-Info, Apikey", w.Header().Get("Access-Control-Allow-Headers"))
	})

	t.Run("Should decorate error responses too", func(t *testing.T) {
		w := do(t, s.Handler(), http.MethodPost, edgefn.SearchPath, `{"query":"x"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Should return a request id", func(t *testing.T) {
		w := do(t, s.Handler(), http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})
}

func TestSearch(t *testing.T) {
	t.Run("Should report missing credentials before checking the query", func(t *testing.T) {
		s := NewServer(config.EdgeConfig{}, zerolog.Nop())
		w := do(t, s.Handler(), http.MethodPost, edgefn.SearchPath, `{}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Azure Search credentials not configured", decode(t, w)["error"])
	})

	t.Run("Should require a query", func(t *testing.T) {
		s := NewServer(config.EdgeConfig{Search: config.EdgeSearchConfig{Endpoint: "http://x", Key: "k"}}, zerolog.Nop())
		w := do(t, s.Handler(), http.MethodPost, edgefn.SearchPath, `{"query":""}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Query parameter is required", decode(t, w)["error"])
	})

	t.Run("Should return provider records with debug info", func(t *testing.T) {
		az, call := fakeAzure(t, http.StatusOK, `{"@odata.count":7,"value":[{"id":"1","title":"Vacation Policy 2024","content":"Employees accrue 1.5 days per month.","@search.score":2.5}]}`)
		s := NewServer(config.EdgeConfig{Search: config.EdgeSearchConfig{Endpoint: az.URL, Key: "secret"}}, zerolog.Nop())

		w := do(t, s.Handler(), http.MethodPost, edgefn.SearchPath, `{"query":"vacation"}`)
		require.Equal(t, http.StatusOK, w.Code)

		assert.Equal(t, "/indexes/default-index/docs/search", call.path)
		assert.Equal(t, "secret", call.key)
		assert.Equal(t, float64(5), call.body["top"])

		out := decode(t, w)
		assert.Equal(t, "vacation", out["query"])
		assert.Equal(t, float64(1), out["count"])
		results := out["results"].([]any)
		first := results[0].(map[string]any)
		assert.Equal(t, "Vacation Policy 2024", first["title"])
		assert.Equal(t, 2.5, first["@search.score"])
		debug := out["debugInfo"].(map[string]any)
		assert.Equal(t, az.URL, debug["endpoint"])
		assert.Equal(t, "default-index", debug["index"])
		assert.Equal(t, float64(7), debug["totalResults"])
	})

	t.Run("Should let the request override index and top", func(t *testing.T) {
		az, call := fakeAzure(t, http.StatusOK, `{"value":[]}`)
		s := NewServer(config.EdgeConfig{Search: config.EdgeSearchConfig{Endpoint: "http://unused", Key: "k", Index: "env-index"}}, zerolog.Nop())

		body := `{"query":"q","top":3,"azureConfig":{"endpoint":"` + az.URL + `","index":"sharepoint-index"}}`
		w := do(t, s.Handler(), http.MethodPost, edgefn.SearchPath, body)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "/indexes/sharepoint-index/docs/search", call.path)
		assert.Equal(t, "k", call.key)
		assert.Equal(t, float64(3), call.body["top"])

		out := decode(t, w)
		assert.Equal(t, float64(0), out["count"])
		assert.Equal(t, []any{}, out["results"])
		_, hasTotal := out["debugInfo"].(map[string]any)["totalResults"]
		assert.False(t, hasTotal)
	})

	t.Run("Should pass provider failures through", func(t *testing.T) {
		az, _ := fakeAzure(t, http.StatusNotFound, `{"error":{"message":"index not found"}}`)
		s := NewServer(config.EdgeConfig{Search: config.EdgeSearchConfig{Endpoint: az.URL, Key: "k", Index: "missing"}}, zerolog.Nop())

		w := do(t, s.Handler(), http.MethodPost, edgefn.SearchPath, `{"query":"q"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
		out := decode(t, w)
		assert.Equal(t, "Azure Search request failed", out["error"])
		assert.Contains(t, out["details"], "index not found")
		assert.Equal(t, float64(404), out["statusCode"])
		assert.Equal(t, "missing", out["indexName"])
		assert.Contains(t, out["searchUrl"], "/indexes/missing/docs/search?api-version=2023-11-01")
	})

	t.Run("Should map transport failures to 500", func(t *testing.T) {
		az, _ := fakeAzure(t, http.StatusOK, `{}`)
		url := az.URL
		az.Close()
		s := NewServer(config.EdgeConfig{Search: config.EdgeSearchConfig{Endpoint: url, Key: "k"}}, zerolog.Nop())

		w := do(t, s.Handler(), http.MethodPost, edgefn.SearchPath, `{"query":"q"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		out := decode(t, w)
		assert.Equal(t, "Internal server error", out["error"])
		assert.NotEmpty(t, out["message"])
	})

	t.Run("Should map malformed bodies to 500", func(t *testing.T) {
		s := NewServer(config.EdgeConfig{Search: config.EdgeSearchConfig{Endpoint: "http://x", Key: "k"}}, zerolog.Nop())
		w := do(t, s.Handler(), http.MethodPost, edgefn.SearchPath, `{not json`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Internal server error", decode(t, w)["error"])
	})
}

func TestStorage(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte("storage-key"))

	fakeBlob := func(t *testing.T, status int, reply string) *blob.Client {
		t.Helper()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/documents", r.URL.Path)
			assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "SharedKey acct:"))
			w.WriteHeader(status)
			_, _ = io.WriteString(w, reply)
		}))
		t.Cleanup(srv.Close)
		return blob.NewClient(blob.Config{Account: "acct", Key: key, BaseURL: srv.URL})
	}

	t.Run("Should report missing credentials first", func(t *testing.T) {
		s := NewServer(config.EdgeConfig{}, zerolog.Nop())
		w := do(t, s.Handler(), http.MethodPost, StoragePath, `{"operation":"list"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Azure Storage credentials not configured", decode(t, w)["error"])
	})

	t.Run("Should return the raw listing", func(t *testing.T) {
		listing := `<?xml version="1.0" encoding="utf-8"?><EnumerationResults><Blobs><Blob><Name>policy.pdf</Name></Blob></Blobs></EnumerationResults>`
		s := NewServer(config.EdgeConfig{}, zerolog.Nop(), WithBlobClient(fakeBlob(t, http.StatusOK, listing)))

		w := do(t, s.Handler(), http.MethodPost, StoragePath, `{"operation":"list"}`)
		require.Equal(t, http.StatusOK, w.Code)
		var out ListResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		assert.Equal(t, "documents", out.Container)
		assert.Equal(t, listing, out.XML)
	})

	t.Run("Should pass listing failures through", func(t *testing.T) {
		s := NewServer(config.EdgeConfig{}, zerolog.Nop(), WithBlobClient(fakeBlob(t, http.StatusForbidden, "AuthenticationFailed")))

		w := do(t, s.Handler(), http.MethodPost, StoragePath, `{"operation":"list"}`)
		assert.Equal(t, http.StatusForbidden, w.Code)
		out := decode(t, w)
		assert.Equal(t, "Failed to list blobs", out["error"])
		assert.Equal(t, "AuthenticationFailed", out["details"])
	})

	t.Run("Should build blob urls", func(t *testing.T) {
		s := NewServer(config.EdgeConfig{Storage: config.EdgeStorageConfig{Account: "acct", Key: key}}, zerolog.Nop())

		w := do(t, s.Handler(), http.MethodPost, StoragePath, `{"operation":"get","blobName":"policy.pdf"}`)
		require.Equal(t, http.StatusOK, w.Code)
		var out BlobResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		assert.Equal(t, "https://acct.blob.core.windows.net/documents/policy.pdf", out.BlobURL)
		assert.Equal(t, "policy.pdf", out.BlobName)
	})

	t.Run("Should reject unknown operations", func(t *testing.T) {
		s := NewServer(config.EdgeConfig{Storage: config.EdgeStorageConfig{Account: "acct", Key: key}}, zerolog.Nop())

		for _, body := range []string{`{"operation":"get"}`, `{"operation":"delete"}`} {
			w := do(t, s.Handler(), http.MethodPost, StoragePath, body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "Invalid operation or missing parameters", decode(t, w)["error"])
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	s := NewServer(config.EdgeConfig{}, zerolog.Nop())
	_ = do(t, s.Handler(), http.MethodPost, StoragePath, `{}`)

	w := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.Contains(w.Body.Bytes(), []byte("azchat_edge_requests_total")))
}

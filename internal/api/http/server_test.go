package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/vmrunner/internal/api/http/handlers"
	"github.com/weisyn/vmrunner/internal/api/http/middleware"
	apitypes "github.com/weisyn/vmrunner/internal/api/types"
	apiconfig "github.com/weisyn/vmrunner/internal/config/api"
	"github.com/weisyn/vmrunner/internal/core/vm/kind"
	"github.com/weisyn/vmrunner/internal/core/vm/testutil"
	"github.com/weisyn/vmrunner/pkg/types"
)

// fakeEngines 只启用编译器，字节码以 "\x00asm" 开头即视为可编译
type fakeEngines struct {
	checked []types.ProtocolVersion
}

func (f *fakeEngines) Kinds() []kind.EngineKind { return []kind.EngineKind{kind.Compiler} }

func (f *fakeEngines) CheckCompile(code []byte, pv types.ProtocolVersion) bool {
	f.checked = append(f.checked, pv)
	return strings.HasPrefix(string(code), "\x00asm")
}

func newTestServer(t *testing.T) (*Server, *fakeEngines) {
	t.Helper()
	engines := &fakeEngines{}
	opts := apiconfig.New(nil).GetOptions()
	opts.MaxRequestSize = 64
	return NewServer(opts, testutil.NewTestLogger(), engines, kind.All()), engines
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID), "应返回请求ID")
}

func TestServer_Engines(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(s, http.MethodGet, "/engines", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp handlers.EnginesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"interpreter", "compiler"}, resp.CompiledIn)
	assert.Equal(t, []string{"compiler"}, resp.Enabled)
	assert.Equal(t, uint32(kind.CompilerProtocolVersion), resp.CompilerProtocolVersion)
}

func TestServer_Resolve(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(s, http.MethodGet, "/resolve/44", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp handlers.ResolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "interpreter", resp.Engine)
	assert.True(t, resp.Supported)
	assert.False(t, resp.Available, "解释器未启用")

	w = do(s, http.MethodGet, "/resolve/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestServer_Check(t *testing.T) {
	s, engines := newTestServer(t)

	w := do(s, http.MethodPost, "/check", "\x00asm\x01\x00\x00\x00")
	require.Equal(t, http.StatusOK, w.Code)
	var resp handlers.CheckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "compiler", resp.Engine)
	assert.Equal(t, types.HashBytes([]byte("\x00asm\x01\x00\x00\x00")).String(), resp.CodeHash)
	assert.Equal(t, []types.ProtocolVersion{kind.CurrentProtocolVersion}, engines.checked)

	w = do(s, http.MethodPost, "/check", "garbage")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.OK)
}

func TestServer_CheckRejections(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(s, http.MethodPost, "/check?protocol_version=30", "\x00asm")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "解释器版本在本节点不可用")
	var problem apitypes.ProblemDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, apitypes.CodeUnsupportedVersion, problem.Code)
	assert.Equal(t, w.Header().Get(middleware.HeaderRequestID), problem.TraceID)

	w = do(s, http.MethodPost, "/check", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, http.MethodPost, "/check", strings.Repeat("x", 65))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestServer_Metrics(t *testing.T) {
	s, _ := newTestServer(t)
	do(s, http.MethodGet, "/engines", "")
	w := do(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "vmrunner_api_requests_total")
}

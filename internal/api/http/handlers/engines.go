package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/weisyn/vmrunner/internal/api/http/middleware"
	apitypes "github.com/weisyn/vmrunner/internal/api/types"
	"github.com/weisyn/vmrunner/internal/core/vm/kind"
	"github.com/weisyn/vmrunner/pkg/types"
)

// EngineSet 管理接口需要的执行调度能力
type EngineSet interface {
	// Kinds 可用的引擎种类
	Kinds() []kind.EngineKind
	// CheckCompile 检查字节码能否在协议版本对应的引擎上编译
	CheckCompile(code []byte, pv types.ProtocolVersion) bool
}

// EngineHandler 引擎查询与编译检查
type EngineHandler struct {
	engines    EngineSet
	compiledIn []kind.EngineKind
	maxBody    int64
}

// NewEngineHandler 创建处理器
func NewEngineHandler(engines EngineSet, compiledIn []kind.EngineKind, maxBody int64) *EngineHandler {
	return &EngineHandler{engines: engines, compiledIn: compiledIn, maxBody: maxBody}
}

// EnginesResponse GET /engines
type EnginesResponse struct {
	CompiledIn              []string `json:"compiled_in"`
	Enabled                 []string `json:"enabled"`
	MinSupportedVersion     uint32   `json:"min_supported_protocol_version"`
	CompilerProtocolVersion uint32   `json:"compiler_protocol_version"`
	CurrentProtocolVersion  uint32   `json:"current_protocol_version"`
}

// ResolveResponse GET /resolve/:version
type ResolveResponse struct {
	ProtocolVersion uint32 `json:"protocol_version"`
	Engine          string `json:"engine"`
	Supported       bool   `json:"supported"`
	Available       bool   `json:"available"`
}

// CheckResponse POST /check
type CheckResponse struct {
	ProtocolVersion uint32 `json:"protocol_version"`
	Engine          string `json:"engine"`
	CodeHash        string `json:"code_hash"`
	Size            int    `json:"size"`
	OK              bool   `json:"ok"`
}

// RegisterRoutes 注册路由；checkMiddleware 只作用于 /check
func (h *EngineHandler) RegisterRoutes(r gin.IRouter, checkMiddleware ...gin.HandlerFunc) {
	r.GET("/engines", h.Engines)
	r.GET("/resolve/:version", h.Resolve)
	r.POST("/check", append(checkMiddleware, h.Check)...)
}

// Engines 列出编译进来的和启用的引擎
func (h *EngineHandler) Engines(c *gin.Context) {
	c.JSON(http.StatusOK, EnginesResponse{
		CompiledIn:              kindNames(h.compiledIn),
		Enabled:                 kindNames(h.engines.Kinds()),
		MinSupportedVersion:     uint32(kind.MinSupportedProtocolVersion),
		CompilerProtocolVersion: uint32(kind.CompilerProtocolVersion),
		CurrentProtocolVersion:  uint32(kind.CurrentProtocolVersion),
	})
}

// Resolve 协议版本 → 引擎种类
func (h *EngineHandler) Resolve(c *gin.Context) {
	pv, ok := parseVersion(c, c.Param("version"))
	if !ok {
		return
	}
	k := kind.ForProtocolVersion(pv)
	c.JSON(http.StatusOK, ResolveResponse{
		ProtocolVersion: uint32(pv),
		Engine:          k.String(),
		Supported:       kind.IsSupported(pv),
		Available:       h.available(k),
	})
}

// Check 请求体为原始字节码；protocol_version 查询参数缺省为当前版本
func (h *EngineHandler) Check(c *gin.Context) {
	pv := kind.CurrentProtocolVersion
	if raw := c.Query("protocol_version"); raw != "" {
		var ok bool
		if pv, ok = parseVersion(c, raw); !ok {
			return
		}
	}
	k := kind.ForProtocolVersion(pv)
	if !kind.IsSupported(pv) || !h.available(k) {
		middleware.WriteError(c, http.StatusUnprocessableEntity, apitypes.CodeUnsupportedVersion,
			"protocol version is not served by this node",
			map[string]interface{}{"protocol_version": uint32(pv), "engine": k.String()})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
	code, err := c.GetRawData()
	if err != nil {
		middleware.WriteError(c, http.StatusRequestEntityTooLarge, apitypes.CodeRequestTooLarge, err.Error(),
			map[string]interface{}{"max_bytes": h.maxBody})
		return
	}
	if len(code) == 0 {
		middleware.WriteError(c, http.StatusBadRequest, apitypes.CodeValidationError, "request body is empty", nil)
		return
	}

	c.JSON(http.StatusOK, CheckResponse{
		ProtocolVersion: uint32(pv),
		Engine:          k.String(),
		CodeHash:        types.HashBytes(code).String(),
		Size:            len(code),
		OK:              h.engines.CheckCompile(code, pv),
	})
}

func (h *EngineHandler) available(k kind.EngineKind) bool {
	for _, e := range h.engines.Kinds() {
		if e == k {
			return true
		}
	}
	return false
}

func parseVersion(c *gin.Context, raw string) (types.ProtocolVersion, bool) {
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		middleware.WriteError(c, http.StatusBadRequest, apitypes.CodeValidationError,
			"invalid protocol version: "+raw, nil)
		return 0, false
	}
	return types.ProtocolVersion(v), true
}

func kindNames(ks []kind.EngineKind) []string {
	out := make([]string, 0, len(ks))
	for _, k := range ks {
		out = append(out, k.String())
	}
	return out
}

// Package types 管理HTTP的响应类型
package types

import (
	"time"

	"github.com/google/uuid"
)

// ProblemDetails 错误响应（RFC7807 + 扩展字段）
type ProblemDetails struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title,omitempty"`
	Status int    `json:"status,omitempty"`
	Detail string `json:"detail,omitempty"`

	Code      string                 `json:"code"`
	Details   map[string]interface{} `json:"details,omitempty"`
	TraceID   string                 `json:"traceId"`
	Timestamp string                 `json:"timestamp"`
}

// Error 实现 error 接口
func (p *ProblemDetails) Error() string {
	return p.Detail
}

// NewProblemDetails 创建错误响应；traceID 为空时生成新的
func NewProblemDetails(code string, status int, detail string, traceID string, details map[string]interface{}) *ProblemDetails {
	if traceID == "" {
		traceID = uuid.New().String()
	}
	return &ProblemDetails{
		Title:     code,
		Status:    status,
		Detail:    detail,
		Code:      code,
		Details:   details,
		TraceID:   traceID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// 错误码
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeRequestTooLarge    = "REQUEST_TOO_LARGE"
	CodeUnsupportedVersion = "UNSUPPORTED_PROTOCOL_VERSION"
	CodeRateLimited        = "RATE_LIMITED"
)

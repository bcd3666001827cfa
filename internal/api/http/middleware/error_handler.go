package middleware

import (
	"github.com/gin-gonic/gin"

	apitypes "github.com/weisyn/vmrunner/internal/api/types"
)

// WriteError 写入错误响应，traceId 与请求ID一致
func WriteError(c *gin.Context, status int, code string, detail string, details map[string]interface{}) {
	problem := apitypes.NewProblemDetails(code, status, detail, GetRequestID(c), details)
	c.Header("Content-Type", "application/problem+json")
	c.JSON(status, problem)
	c.Abort()
}

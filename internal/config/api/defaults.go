package api

import "time"

const (
	// defaultHTTPHost 只监听本地：管理接口不对外暴露
	defaultHTTPHost = "127.0.0.1"

	// defaultHTTPPort 管理HTTP端口
	defaultHTTPPort = 9464

	defaultHTTPReadTimeout  = 15 * time.Second
	defaultHTTPWriteTimeout = 15 * time.Second

	// defaultMaxRequestSize 与默认的合约大小上限一致
	defaultMaxRequestSize = 4 * 1024 * 1024

	// defaultCheckRateLimit /check 每个客户端每秒请求数
	defaultCheckRateLimit = 20
)

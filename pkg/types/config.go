// Package types provides configuration type definitions.
package types

// AppConfig 应用程序根配置
// 只包含JSON配置文件解析所需的结构，不包含任何内部字段
// 默认值和完整配置结构在 internal/config/*/defaults.go 和 internal/config/*/config.go 中定义
type AppConfig struct {
	// 应用程序基本信息
	AppName *string `json:"app_name,omitempty"` // 应用名称
	DataDir *string `json:"data_dir,omitempty"` // 数据目录路径
	Version *string `json:"version,omitempty"`  // 应用版本

	// Environment 运行环境：dev | test | prod
	// 只影响日志级别等运维属性，不影响执行语义
	Environment *string `json:"environment,omitempty"`

	// 存储配置（编译产物缓存的后端）
	Storage *UserStorageConfig `json:"storage,omitempty"`

	// 日志配置
	Log *UserLogConfig `json:"log,omitempty"`

	// 执行层配置
	VM *UserVMConfig `json:"vm,omitempty"`

	// 管理HTTP配置（vmrunner serve）
	API *UserAPIConfig `json:"api,omitempty"`
}

// UserStorageConfig 用户存储配置
type UserStorageConfig struct {
	DataRoot *string `json:"data_root,omitempty"` // 数据根目录（data_root）

	// Backend 缓存后端：memory | bigcache | badger | redis | tiered
	Backend *string `json:"backend,omitempty"`

	// bigcache 容量（MB），为空时按系统内存推导
	MemoryMaxMB *int `json:"memory_max_mb,omitempty"`

	Redis *UserRedisConfig `json:"redis,omitempty"`
}

// UserRedisConfig 用户Redis配置
type UserRedisConfig struct {
	Addr      *string `json:"addr,omitempty"`
	Password  *string `json:"password,omitempty"`
	DB        *int    `json:"db,omitempty"`
	KeyPrefix *string `json:"key_prefix,omitempty"`
	PoolSize  *int    `json:"pool_size,omitempty"`
}

// UserLogConfig 用户日志配置
// 只包含JSON配置文件中实际出现的字段
type UserLogConfig struct {
	Level     *string `json:"level,omitempty"`      // 日志级别：debug, info, warn, error, fatal
	FilePath  *string `json:"file_path,omitempty"`  // 日志文件路径
	ToConsole *bool   `json:"to_console,omitempty"` // 是否同时输出到控制台
}

// UserVMConfig 用户执行层配置
type UserVMConfig struct {
	// EnabledEngines 启用的引擎列表：interpreter, compiler（为空表示全部已编译进来的引擎）
	EnabledEngines []string `json:"enabled_engines,omitempty"`

	// InfraErrorPolicy 缓存存储故障策略：degrade | fail
	InfraErrorPolicy *string `json:"infra_error_policy,omitempty"`

	// CompilationCacheDir wazero编译器的磁盘编译缓存目录（仅compiler引擎）
	CompilationCacheDir *string `json:"compilation_cache_dir,omitempty"`

	// ModuleCacheEntries 进程内已编译模块数量上限
	ModuleCacheEntries *int `json:"module_cache_entries,omitempty"`

	// 启动时校验的协议版本回放区间
	ReplayFromVersion *uint32 `json:"replay_from_version,omitempty"`
	ReplayToVersion   *uint32 `json:"replay_to_version,omitempty"`
}

// UserAPIConfig 用户管理HTTP配置
type UserAPIConfig struct {
	HTTPPort *int `json:"http_port,omitempty"`

	// CheckRateLimit /check 每个客户端每秒请求数，0 表示不限流
	CheckRateLimit *int `json:"check_rate_limit,omitempty"`
}

// LogLevel 日志级别
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
	FatalLevel LogLevel = "fatal"
)

// StringPtr 返回字符串指针（构造配置时使用）
func StringPtr(s string) *string { return &s }

// IntPtr 返回int指针
func IntPtr(i int) *int { return &i }

// BoolPtr 返回bool指针
func BoolPtr(b bool) *bool { return &b }

// Uint32Ptr 返回uint32指针
func Uint32Ptr(v uint32) *uint32 { return &v }

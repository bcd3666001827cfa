package storage

const (
	// defaultBackend 默认使用本地持久化存储，节点重启后无需重新编译
	defaultBackend = BackendBadger

	// defaultDataRoot 默认数据根目录（相对项目根目录）
	defaultDataRoot = "data"
)

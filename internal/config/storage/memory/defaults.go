package memory

// 进程内产物缓存默认配置值
const (
	// minMaxSizeMB / maxMaxSizeMB 推导容量的上下限
	minMaxSizeMB = 64
	maxMaxSizeMB = 1024

	// defaultShards BigCache 要求分片数为2的幂，单分片容量 = 总容量 / 分片数，需容纳最大的单个产物
	defaultShards = 64

	// defaultMaxEntrySize 预处理后的合约通常在百KB量级
	defaultMaxEntrySize = 256 * 1024

	// defaultMaxEntriesInWindow 只影响初始预分配
	defaultMaxEntriesInWindow = 1024
)

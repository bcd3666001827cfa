package badger

import (
	"path/filepath"

	"github.com/weisyn/vmrunner/pkg/utils"
)

// badgerSubdir 数据根目录下的子目录名
const badgerSubdir = "compiled-contracts"

// getDefaultPath 获取默认数据库路径
func getDefaultPath() string {
	return utils.ResolveDataPath(filepath.Join("data", badgerSubdir))
}

const (
	// defaultSyncWrites 产物可以重新编译，丢失最近写入只会导致一次未命中
	defaultSyncWrites = false

	// defaultMemTableSize 默认内存表大小为64MB
	defaultMemTableSize = 64 << 20

	// defaultValueLogFileSize 512MB，降低 mmap 虚拟地址占用
	defaultValueLogFileSize = 512 << 20

	// defaultBlockCacheSize 64MB
	defaultBlockCacheSize = 64 << 20
)

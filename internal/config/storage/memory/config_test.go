package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	configtypes "github.com/weisyn/vmrunner/pkg/types"
)

func TestDefaultMaxSizeMB_Clamped(t *testing.T) {
	assert.Equal(t, minMaxSizeMB, defaultMaxSizeMB(0))
	assert.Equal(t, minMaxSizeMB, defaultMaxSizeMB(1<<30)) // 1GB / 64 = 16MB
	assert.Equal(t, 256, defaultMaxSizeMB(16<<30))         // 16GB / 64 = 256MB
	assert.Equal(t, maxMaxSizeMB, defaultMaxSizeMB(1<<40)) // 1TB
}

func TestNew_UserOverride(t *testing.T) {
	size := 96
	cfg := New(&configtypes.UserStorageConfig{MemoryMaxMB: &size})
	assert.Equal(t, 96, cfg.GetMaxSizeMB())
	assert.Equal(t, defaultShards, cfg.GetShards())

	cfg = New(nil)
	assert.GreaterOrEqual(t, cfg.GetMaxSizeMB(), minMaxSizeMB)
}

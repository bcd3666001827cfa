package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/vmrunner/configs"
	"github.com/weisyn/vmrunner/internal/config"
	"github.com/weisyn/vmrunner/internal/core/vm/kind"
	"github.com/weisyn/vmrunner/internal/core/vm/testutil"
	"github.com/weisyn/vmrunner/pkg/types"
)

func memoryConfig() *types.AppConfig {
	return &types.AppConfig{
		Storage: &types.UserStorageConfig{Backend: types.StringPtr("memory")},
		Log:     &types.UserLogConfig{Level: types.StringPtr("error")},
	}
}

func TestStart_WiresOrchestratorAndStore(t *testing.T) {
	a, err := Start(WithAppConfig(memoryConfig()))
	if err != nil {
		t.Skipf("当前平台无法创建全部引擎: %v", err)
	}
	t.Cleanup(func() { _ = a.Stop() })

	require.NotNil(t, a.Orchestrator())
	require.NotNil(t, a.Store())
	require.NotNil(t, a.Logger())

	code := testutil.Noop()
	verr := a.Orchestrator().Precompile(context.Background(), code, types.HashBytes(code),
		types.DefaultVMConfig(), kind.CurrentProtocolVersion, a.Store())
	assert.Nil(t, verr)
}

func TestStart_InvalidConfigFails(t *testing.T) {
	cfg := memoryConfig()
	cfg.VM = &types.UserVMConfig{InfraErrorPolicy: types.StringPtr("ignore")}
	_, err := Start(WithAppConfig(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "infra_error_policy")
}

func TestLoadConfig(t *testing.T) {
	builtin, err := config.Parse(configs.Default())
	require.NoError(t, err, "内置配置必须能解析")
	require.NotNil(t, builtin.VM)
	assert.Equal(t, "degrade", *builtin.VM.InfraErrorPolicy)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err, "显式指定的文件不存在时应报错")

	path := filepath.Join(t.TempDir(), "vmrunner.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"vm":{"infra_error_policy":"fail"}}`), 0o644))
	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "fail", *cfg.VM.InfraErrorPolicy)
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	assert.Equal(t, DefaultConfigPath, resolveConfigPath(""))
	t.Setenv(EnvConfigPath, "/etc/vmrunner.json")
	assert.Equal(t, "/etc/vmrunner.json", resolveConfigPath(""))
	assert.Equal(t, "x.json", resolveConfigPath("x.json"))
}

func TestCreateDataDirectories(t *testing.T) {
	root := t.TempDir()
	cfg := &types.AppConfig{
		Storage: &types.UserStorageConfig{DataRoot: types.StringPtr(filepath.Join(root, "data"))},
		Log:     &types.UserLogConfig{FilePath: types.StringPtr(filepath.Join(root, "logs", "vmrunner.log"))},
	}
	require.NoError(t, createDataDirectories(cfg))
	assert.DirExists(t, filepath.Join(root, "data"))
	assert.DirExists(t, filepath.Join(root, "logs"))
}

package main

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/term"

	infralog "github.com/weisyn/vmrunner/internal/core/infrastructure/log"
)

func TestPrintError_WritesGlobalLogger(t *testing.T) {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		t.Skip("标准错误是终端时走 pterm 输出")
	}
	core, logs := observer.New(zapcore.DebugLevel)
	old := infralog.GetLogger()
	infralog.SetLogger(infralog.NewFromZap(zap.New(core)))
	t.Cleanup(func() { infralog.SetLogger(old) })

	printError(errors.New("config file not found"))

	entries := logs.FilterMessageSnippet("config file not found").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
}

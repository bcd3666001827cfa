package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimit_RefillsPerSecond(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	m := NewRateLimit(2)
	m.now = func() time.Time { return clock }

	assert.True(t, m.allow("a"))
	assert.True(t, m.allow("a"))
	assert.False(t, m.allow("a"), "令牌耗尽")
	assert.True(t, m.allow("b"), "不同客户端互不影响")

	clock = clock.Add(500 * time.Millisecond)
	assert.False(t, m.allow("a"), "不足一秒不补充")

	clock = clock.Add(600 * time.Millisecond)
	assert.True(t, m.allow("a"))
	assert.True(t, m.allow("a"))
	assert.False(t, m.allow("a"), "补充量不超过上限")
}

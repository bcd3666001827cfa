package redis

import "time"

const (
	defaultAddr         = "localhost:6379"
	defaultKeyPrefix    = "vmrunner:compiled:"
	defaultPoolSize     = 10
	defaultMinIdleConns = 2
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second
)

package cache

import (
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/stretchr/testify/assert"
)

// This test requires a running memcached instance
// If memcached is not available, the test will be skipped
func TestMemcacheService(t *testing.T) {
	mc := NewMemcacheService("localhost:11211")

	if err := mc.Ping(); err != nil {
		t.Skip("Memcached is not available, skipping test")
	}

	err := mc.Set("arbuz_rate_limited", []byte("60"), 1*time.Second)
	assert.NoError(t, err)

	value, err := mc.Get("arbuz_rate_limited")
	assert.NoError(t, err)
	assert.Equal(t, "60", string(value))

	err = mc.Delete("arbuz_rate_limited")
	assert.NoError(t, err)

	_, err = mc.Get("arbuz_rate_limited")
	assert.ErrorIs(t, err, memcache.ErrCacheMiss)
}

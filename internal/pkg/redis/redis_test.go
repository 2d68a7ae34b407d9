package redis

import (
	"fmt"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"no addrs", &Config{Mode: ModeSingle}, true},
		{"single with two addrs", &Config{Mode: ModeSingle, Addrs: []string{"a:1", "b:2"}}, true},
		{"sentinel without master", &Config{Mode: ModeSentinel, Addrs: []string{"s:26379"}}, true},
		{"sentinel", &Config{Mode: ModeSentinel, Addrs: []string{"s:26379"}, MasterName: "mymaster"}, false},
		{"cluster with db", &Config{Mode: ModeCluster, Addrs: []string{"c:7000"}, DB: 1}, true},
		{"cluster", &Config{Mode: ModeCluster, Addrs: []string{"c:7000", "c:7001"}}, false},
		{"unknown mode", &Config{Mode: "read-write", Addrs: []string{"a:1"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUniversalOptions(t *testing.T) {
	cfg := &Config{Mode: ModeCluster, Addrs: []string{"c:7000"}, EnableTLS: true}
	opts := universalOptions(cfg)
	assert.Equal(t, []string{"c:7000"}, opts.Cluster().Addrs)
	assert.NotNil(t, opts.TLSConfig)

	cfg = &Config{Mode: ModeSentinel, Addrs: []string{"s:26379"}, MasterName: "m"}
	assert.Equal(t, "m", universalOptions(cfg).MasterName)
}

func TestKeyPrefixAndErrors(t *testing.T) {
	c := NewWithClient(nil, &Config{KeyPrefix: "vs:"}, nil)
	assert.Equal(t, "vs:share:abc", c.Key("share:abc"))

	assert.True(t, IsNil(fmt.Errorf("get: %w", redis.Nil)))
	assert.False(t, IsNil(ErrClosed))
	assert.True(t, IsClosed(redis.ErrClosed))
}

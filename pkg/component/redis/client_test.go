package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	options "github.com/kart-io/sentinel-faq/pkg/options/redis"
)

func TestNew_DoesNotDial(t *testing.T) {
	opts := options.NewOptions()
	opts.Port = 1 // nothing listens here
	opts.DialTimeout = 100 * time.Millisecond
	opts.MaxRetries = 0

	c, err := New(opts)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	assert.Equal(t, "redis", c.Name())
	assert.Same(t, opts, c.Options())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, c.Ping(ctx))
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	opts := options.NewOptions()
	opts.Host = ""
	_, err = New(opts)
	assert.Error(t, err)
}

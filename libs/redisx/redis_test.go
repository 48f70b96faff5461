package redisx

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDisabled(t *testing.T) {
	client, err := Open(context.Background(), Config{Addr: "  "})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestReadyCheck(t *testing.T) {
	assert.Nil(t, ReadyCheck(nil))

	// Nothing listens on port 1; the check must report the failure instead of panicking.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()
	check := ReadyCheck(client)
	require.NotNil(t, check)
	assert.ErrorContains(t, check(context.Background()), "redis ping")
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPort(t *testing.T) {
	t.Setenv("TEST_PORT", "8085")
	port, err := Port("TEST_PORT", "1")
	require.NoError(t, err)
	assert.Equal(t, "8085", port)

	t.Setenv("TEST_PORT", "70000")
	_, err = Port("TEST_PORT", "1")
	require.Error(t, err)
}

func TestRequiredString(t *testing.T) {
	t.Setenv("TEST_REQUIRED", "")
	_, err := RequiredString("TEST_REQUIRED")
	require.Error(t, err)

	t.Setenv("TEST_REQUIRED", "postgres://x")
	v, err := RequiredString("TEST_REQUIRED")
	require.NoError(t, err)
	assert.Equal(t, "postgres://x", v)
}

func TestTypedLookups(t *testing.T) {
	t.Setenv("TEST_INT", "12")
	t.Setenv("TEST_BAD_INT", "x")
	t.Setenv("TEST_BOOL", "yes")
	t.Setenv("TEST_DURATION", "90s")
	t.Setenv("TEST_BAD_DURATION", "-5m")
	t.Setenv("TEST_LIST", " a, ,b ,")

	assert.Equal(t, 12, Int("TEST_INT", 1, 0))
	assert.Equal(t, 1, Int("TEST_INT", 1, 20))
	assert.Equal(t, 3, Int("TEST_BAD_INT", 3, 0))
	assert.True(t, Bool("TEST_BOOL", false))
	assert.True(t, Bool("TEST_UNSET_BOOL", true))
	assert.Equal(t, 90*time.Second, Duration("TEST_DURATION", time.Minute))
	assert.Equal(t, time.Minute, Duration("TEST_BAD_DURATION", time.Minute))
	assert.Equal(t, []string{"a", "b"}, List("TEST_LIST", ""))
	assert.Equal(t, []string{"x", "y"}, List("TEST_UNSET_LIST", "x,y"))
}

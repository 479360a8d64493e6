package session

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGate() *StaticGate {
	logger := zerolog.Nop()
	return NewStaticGate("admin", "606707606", NewMemoryRepository(), &logger)
}

func TestStaticGate_Login(t *testing.T) {
	gate := newTestGate()
	ctx := context.Background()

	t.Run("correct credentials open a session", func(t *testing.T) {
		ok, err := gate.Login(ctx, "admin", "606707606", false)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, gate.IsAuthenticated(ctx))
	})

	t.Run("wrong password rejected", func(t *testing.T) {
		gate := newTestGate()
		ok, err := gate.Login(ctx, "admin", "wrong", false)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.False(t, gate.IsAuthenticated(ctx))
	})

	t.Run("wrong username rejected", func(t *testing.T) {
		gate := newTestGate()
		ok, err := gate.Login(ctx, "root", "606707606", false)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestStaticGate_RememberMe(t *testing.T) {
	gate := newTestGate()
	ctx := context.Background()

	ok, err := gate.Login(ctx, "admin", "606707606", true)
	require.NoError(t, err)
	require.True(t, ok)

	creds, err := gate.Remembered(ctx)
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "admin", creds.Username)
	assert.True(t, creds.Remember)

	t.Run("logout keeps the remembered record", func(t *testing.T) {
		require.NoError(t, gate.Logout(ctx))
		assert.False(t, gate.IsAuthenticated(ctx))

		creds, err := gate.Remembered(ctx)
		require.NoError(t, err)
		assert.NotNil(t, creds)
	})

	t.Run("login without remember clears the record", func(t *testing.T) {
		ok, err := gate.Login(ctx, "admin", "606707606", false)
		require.NoError(t, err)
		require.True(t, ok)

		creds, err := gate.Remembered(ctx)
		require.NoError(t, err)
		assert.Nil(t, creds)
	})
}

func TestStaticGate_FailedLoginLeavesNoTrace(t *testing.T) {
	gate := newTestGate()
	ctx := context.Background()

	ok, err := gate.Login(ctx, "admin", "wrong", true)
	require.NoError(t, err)
	require.False(t, ok)

	creds, err := gate.Remembered(ctx)
	require.NoError(t, err)
	assert.Nil(t, creds)
	assert.False(t, gate.IsAuthenticated(ctx))
}

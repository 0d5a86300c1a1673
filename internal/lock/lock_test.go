package lock

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceLock_SameKeyExcludes(t *testing.T) {
	// Given: two locks for the same inventory
	dir := t.TempDir()
	first := ForKey(dir, "/srv/inventory.txt")
	second := ForKey(dir, "/srv/inventory.txt")
	assert.Equal(t, first.Path(), second.Path())

	// When: the first is held
	require.NoError(t, first.TryLock())
	defer func() { _ = first.Unlock() }()

	// Then: the second cannot be acquired
	err := second.TryLock()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHeld))
	assert.False(t, second.IsLocked())

	// And: after release it can
	require.NoError(t, first.Unlock())
	require.NoError(t, second.TryLock())
	assert.True(t, second.IsLocked())
	require.NoError(t, second.Unlock())
}

func TestInstanceLock_DifferentKeys(t *testing.T) {
	dir := t.TempDir()
	a := ForKey(dir, "a")
	b := ForKey(dir, "b")

	assert.NotEqual(t, a.Path(), b.Path())
	require.NoError(t, a.TryLock())
	require.NoError(t, b.TryLock())
	assert.NoError(t, a.Unlock())
	assert.NoError(t, b.Unlock())
	assert.NoError(t, b.Unlock())
}

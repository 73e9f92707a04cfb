package identity

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifyIsMemoized(t *testing.T) {
	store := NewStore()

	a, err := store.Identify(Key{"Process/pid": 42, "Process/boot": "f3a1"})
	require.NoError(t, err)
	b, err := store.Identify(Key{"Process/pid": 42, "Process/boot": "f3a1"})
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := store.Identify(Key{"Process/pid": 43, "Process/boot": "f3a1"})
	require.NoError(t, err)
	assert.NotSame(t, a, c)
	assert.NotEqual(t, a.Token(), c.Token())
}

func TestIdentifyKeyOrderDoesNotMatter(t *testing.T) {
	store := NewStore()

	a, err := store.Identify(Key{"File/path": "/etc", "File/mount": "/"})
	require.NoError(t, err)
	b, err := store.Identify(Key{"File/mount": "/", "File/path": "/etc"})
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestIdentifyNormalizesIntWidths(t *testing.T) {
	store := NewStore()

	a, err := store.Identify(Key{"Process/pid": int32(205)})
	require.NoError(t, err)
	b, err := store.Identify(Key{"Process/pid": int64(205)})
	require.NoError(t, err)
	c, err := store.Identify(Key{"Process/pid": uint16(205)})
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Same(t, a, c)
}

func TestIdentifyStringsAreCaseSensitive(t *testing.T) {
	store := NewStore()

	a, err := store.Identify(Key{"User/username": "Root"})
	require.NoError(t, err)
	b, err := store.Identify(Key{"User/username": "root"})
	require.NoError(t, err)
	assert.NotSame(t, a, b)
}

func TestIdentifyRejectsBadKeys(t *testing.T) {
	store := NewStore()

	_, err := store.Identify(Key{})
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, err = store.Identify(nil)
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, err = store.Identify(Key{"": 1})
	assert.ErrorIs(t, err, ErrBadKey)
}

func TestAlias(t *testing.T) {
	store := NewStore()

	id, err := store.Identify(Key{"Process/pid": 1})
	require.NoError(t, err)

	require.NoError(t, store.Alias(id, Key{"MemoryObject/base_object": uint64(0x3000)}))

	// The aliased key now resolves to the same identity.
	got, err := store.Identify(Key{"MemoryObject/base_object": uint64(0x3000)})
	require.NoError(t, err)
	assert.Same(t, id, got)

	// Re-binding the same key to the same identity is a no-op.
	require.NoError(t, store.Alias(id, Key{"MemoryObject/base_object": uint64(0x3000)}))

	// Binding it to a different identity conflicts.
	other, err := store.Identify(Key{"Process/pid": 2})
	require.NoError(t, err)
	assert.ErrorIs(t, store.Alias(other, Key{"MemoryObject/base_object": uint64(0x3000)}), ErrConflict)

	assert.ErrorIs(t, store.Alias(nil, Key{"x/y": 1}), ErrNilIdentity)
}

func TestAliasIsCommutativeWithIdentify(t *testing.T) {
	// Whichever key is seen first, both end up naming one identity.
	first := NewStore()
	a1, err := first.Identify(Key{"File/path": "/tmp/sock"})
	require.NoError(t, err)
	require.NoError(t, first.Alias(a1, Key{"Socket/address": "/tmp/sock"}))
	got1, err := first.Identify(Key{"Socket/address": "/tmp/sock"})
	require.NoError(t, err)
	assert.Same(t, a1, got1)

	second := NewStore()
	a2, err := second.Identify(Key{"Socket/address": "/tmp/sock"})
	require.NoError(t, err)
	require.NoError(t, second.Alias(a2, Key{"File/path": "/tmp/sock"}))
	got2, err := second.Identify(Key{"File/path": "/tmp/sock"})
	require.NoError(t, err)
	assert.Same(t, a2, got2)
}

func TestIdentifyConcurrent(t *testing.T) {
	store := NewStore()

	const workers = 32
	results := make([]*Identity, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := store.Identify(Key{"Process/pid": 205})
			if err == nil {
				results[i] = id
			}
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		require.NotNil(t, results[i])
		assert.Same(t, results[0], results[i])
	}
}

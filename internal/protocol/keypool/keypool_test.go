package keypool_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"cipherlink/internal/domain"
	"cipherlink/internal/protocol/keypool"
)

func TestGenerate_DenseIDsDistinctKeys(t *testing.T) {
	entries, err := keypool.Generate(50)
	require.NoError(t, err)
	require.Len(t, entries, 50)

	seen := map[domain.SymmetricKey]bool{}
	for i, e := range entries {
		require.Equal(t, domain.KeyID(i), e.ID)
		require.False(t, e.Consumed)
		require.False(t, seen[e.Key], "duplicate key at %d", i)
		seen[e.Key] = true
	}
}

func TestGenerate_RejectsNonPositive(t *testing.T) {
	_, err := keypool.Generate(0)
	require.Error(t, err)
	_, err = keypool.Generate(-3)
	require.Error(t, err)
}

func TestSelect_SizeThreeScenario(t *testing.T) {
	entries, err := keypool.Generate(3)
	require.NoError(t, err)
	p := keypool.New(entries)

	_, err = p.Select()
	require.NoError(t, err)
	_, err = p.Select()
	require.NoError(t, err)
	require.Equal(t, 1, p.Remaining(), "third key still available")

	_, err = p.Select()
	require.NoError(t, err)
	require.Zero(t, p.Remaining())

	_, err = p.Select()
	require.ErrorIs(t, err, domain.ErrPoolExhausted)
}

func TestSelect_NeverRepeats(t *testing.T) {
	const n = 64
	entries, err := keypool.Generate(n)
	require.NoError(t, err)
	p := keypool.New(entries)

	seen := map[domain.KeyID]bool{}
	for i := 0; i < n; i++ {
		e, err := p.Select()
		require.NoError(t, err)
		require.True(t, e.Consumed)
		require.False(t, seen[e.ID], "key %d selected twice", e.ID)
		seen[e.ID] = true
	}
	_, err = p.Select()
	require.ErrorIs(t, err, domain.ErrPoolExhausted)
}

func TestSelect_ConcurrentUnique(t *testing.T) {
	const n = 500
	entries, err := keypool.Generate(n)
	require.NoError(t, err)
	p := keypool.New(entries)

	var (
		mu        sync.Mutex
		seen      = map[domain.KeyID]int{}
		exhausted int
		wg        sync.WaitGroup
	)
	for w := 0; w < 20; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 30; i++ {
				e, err := p.Select()
				mu.Lock()
				if err != nil {
					exhausted++
				} else {
					seen[e.ID]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, n)
	for id, c := range seen {
		require.Equal(t, 1, c, "key %d selected %d times", id, c)
	}
	require.Equal(t, 20*30-n, exhausted)
}

func TestNew_KeepsConsumedFlags(t *testing.T) {
	entries, err := keypool.Generate(4)
	require.NoError(t, err)
	entries[0].Consumed = true
	entries[2].Consumed = true

	p := keypool.New(entries)
	require.Equal(t, 2, p.Remaining())
	require.Equal(t, 4, p.Len())

	for i := 0; i < 2; i++ {
		e, err := p.Select()
		require.NoError(t, err)
		require.Contains(t, []domain.KeyID{1, 3}, e.ID)
	}
}

func TestLookup(t *testing.T) {
	entries, err := keypool.Generate(5)
	require.NoError(t, err)
	p := keypool.New(entries)

	e, err := p.Lookup(3)
	require.NoError(t, err)
	require.Equal(t, entries[3].Key, e.Key)

	_, err = p.Lookup(5)
	require.ErrorIs(t, err, domain.ErrKeyNotFound)

	// Sparse pools fall back to a scan.
	sparse := []domain.PoolEntry{{ID: 10}, {ID: 4}}
	got, err := keypool.Find(sparse, 4)
	require.NoError(t, err)
	require.Equal(t, domain.KeyID(4), got.ID)
}

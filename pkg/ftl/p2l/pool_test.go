package p2l

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool(t *testing.T) {
	t.Run("GetReturnsClearedMap", func(t *testing.T) {
		p := NewPool(2, 16)

		m, err := p.Get()
		require.NoError(t, err)
		assert.Equal(t, uint64(16), m.Len())
		for i := uint64(0); i < m.Len(); i++ {
			assert.Equal(t, InvalidLBA, m.Get(i))
		}
	})

	t.Run("EnforcesBound", func(t *testing.T) {
		p := NewPool(2, 4)

		_, err := p.Get()
		require.NoError(t, err)
		_, err = p.Get()
		require.NoError(t, err)

		_, err = p.Get()
		assert.ErrorIs(t, err, ErrExhausted)
		assert.Equal(t, 2, p.InUse())
	})

	t.Run("PutReleasesSlot", func(t *testing.T) {
		p := NewPool(1, 4)

		m, err := p.Get()
		require.NoError(t, err)
		m.Set(3, 42)
		p.Put(m)

		assert.Equal(t, 0, p.InUse())

		m2, err := p.Get()
		require.NoError(t, err)
		assert.Equal(t, InvalidLBA, m2.Get(3), "recycled maps must be cleared")
	})

	t.Run("PutNilIsNoop", func(t *testing.T) {
		p := NewPool(1, 4)
		p.Put(nil)
		assert.Equal(t, 0, p.InUse())
	})

	t.Run("ZeroCapacityAlwaysExhausted", func(t *testing.T) {
		p := NewPool(0, 4)
		_, err := p.Get()
		assert.ErrorIs(t, err, ErrExhausted)
	})
}

func TestPoolConcurrentAccess(t *testing.T) {
	p := NewPool(8, 32)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := p.Get()
			if err != nil {
				return
			}
			m.Set(0, 1)
			p.Put(m)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, p.InUse())
	assert.Equal(t, 8, p.Cap())
}

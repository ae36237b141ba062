package band

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue(t *testing.T) {
	newTable := func(t *testing.T, n uint64) *Table {
		tbl, err := NewTable(n)
		require.NoError(t, err)
		return tbl
	}

	t.Run("PushBackKeepsOrder", func(t *testing.T) {
		tbl := newTable(t, 4)
		q := NewQueue("test")
		for _, id := range []uint64{2, 0, 3} {
			q.PushBack(tbl.Band(id))
		}

		assert.Equal(t, []uint64{2, 0, 3}, q.IDs())
		assert.Equal(t, uint64(3), q.Len())
		assert.Equal(t, uint64(2), q.Front().ID)
	})

	t.Run("RemoveHeadMiddleTail", func(t *testing.T) {
		tbl := newTable(t, 5)
		q := NewQueue("test")
		for i := uint64(0); i < 5; i++ {
			q.PushBack(tbl.Band(i))
		}

		q.Remove(tbl.Band(0))
		q.Remove(tbl.Band(2))
		q.Remove(tbl.Band(4))

		assert.Equal(t, []uint64{1, 3}, q.IDs())
		assert.Nil(t, tbl.Band(2).Queue())
	})

	t.Run("PopFrontDrains", func(t *testing.T) {
		tbl := newTable(t, 2)
		q := NewQueue("test")
		q.PushBack(tbl.Band(1))
		q.PushBack(tbl.Band(0))

		assert.Equal(t, uint64(1), q.PopFront().ID)
		assert.Equal(t, uint64(0), q.PopFront().ID)
		assert.Nil(t, q.PopFront())
		assert.True(t, q.Empty())
	})

	t.Run("MembershipIsExclusive", func(t *testing.T) {
		tbl := newTable(t, 1)
		a, b := NewQueue("a"), NewQueue("b")
		a.PushBack(tbl.Band(0))

		assert.Panics(t, func() { b.PushBack(tbl.Band(0)) })
		assert.Panics(t, func() { b.Remove(tbl.Band(0)) })
		assert.True(t, a.Contains(tbl.Band(0)))
		assert.False(t, b.Contains(tbl.Band(0)))
	})

	t.Run("EachToleratesRemovalOfCurrent", func(t *testing.T) {
		tbl := newTable(t, 6)
		q := NewQueue("test")
		for i := uint64(0); i < 6; i++ {
			q.PushBack(tbl.Band(i))
		}

		q.Each(func(b *Band) bool {
			if b.ID%2 == 0 {
				q.Remove(b)
			}
			return true
		})

		assert.Equal(t, []uint64{1, 3, 5}, q.IDs())
	})

	t.Run("EachStopsEarly", func(t *testing.T) {
		tbl := newTable(t, 3)
		q := NewQueue("test")
		for i := uint64(0); i < 3; i++ {
			q.PushBack(tbl.Band(i))
		}

		visited := 0
		q.Each(func(b *Band) bool {
			visited++
			return false
		})
		assert.Equal(t, 1, visited)
	})

	t.Run("RejectsForeignTable", func(t *testing.T) {
		t1, t2 := newTable(t, 1), newTable(t, 1)
		q := NewQueue("test")
		q.PushBack(t1.Band(0))

		assert.Panics(t, func() { q.PushBack(t2.Band(0)) })
	})
}

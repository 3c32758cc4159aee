package queue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScrollFIFOOrder(t *testing.T) {
	q := NewScroll()
	for i := int32(0); i < 5; i++ {
		q.Enqueue(i)
	}
	for i := int32(0); i < 5; i++ {
		require.Equal(t, i, <-q.C())
	}
}

func TestScrollOverflowDropsNewestLeavesExistingUnchanged(t *testing.T) {
	q := NewScroll()
	for i := int32(0); i < Capacity; i++ {
		q.Enqueue(i)
	}
	// Queue is full; this delta must be dropped, not block or evict.
	q.Enqueue(999)

	for i := int32(0); i < Capacity; i++ {
		require.Equal(t, i, <-q.C())
	}
	select {
	case v := <-q.C():
		t.Fatalf("expected empty queue, got %d", v)
	default:
	}
}

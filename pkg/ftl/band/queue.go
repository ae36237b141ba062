package band

import "fmt"

// noBand terminates a queue link.
const noBand = ^uint64(0)

// link threads a band through at most one Queue. Links are band IDs, never
// pointers, so a band moving between queues cannot leave a dangling reference.
type link struct {
	prev, next uint64
	in         *Queue
}

// Queue is a FIFO of bands threaded through the band table by ID.
//
// A band is a member of at most one queue at a time. Pushing a band that is
// already queued, or removing a band from a queue it is not in, is a
// programming error and panics.
//
// Queues are not safe for concurrent use.
type Queue struct {
	name       string
	tbl        *Table
	head, tail uint64
	n          uint64
}

// NewQueue creates an empty queue. The name shows up in panics and reports.
func NewQueue(name string) *Queue {
	return &Queue{name: name, head: noBand, tail: noBand}
}

// Name returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

// Len returns the number of queued bands.
func (q *Queue) Len() uint64 {
	return q.n
}

// Empty reports whether the queue has no bands.
func (q *Queue) Empty() bool {
	return q.n == 0
}

// Front returns the first band or nil.
func (q *Queue) Front() *Band {
	if q.head == noBand {
		return nil
	}
	return q.tbl.Band(q.head)
}

// Contains reports whether b is queued here.
func (q *Queue) Contains(b *Band) bool {
	return b != nil && b.link.in == q
}

// PushBack appends b to the tail of the queue.
func (q *Queue) PushBack(b *Band) {
	if b.link.in != nil {
		panic(fmt.Sprintf("band %d pushed to %q while queued in %q", b.ID, q.name, b.link.in.name))
	}
	if q.tbl == nil {
		q.tbl = b.tbl
	} else if q.tbl != b.tbl {
		panic(fmt.Sprintf("band %d belongs to a different table than queue %q", b.ID, q.name))
	}

	b.link = link{prev: q.tail, next: noBand, in: q}
	if q.tail == noBand {
		q.head = b.ID
	} else {
		q.tbl.Band(q.tail).link.next = b.ID
	}
	q.tail = b.ID
	q.n++
}

// Remove unlinks b from the queue.
func (q *Queue) Remove(b *Band) {
	if b.link.in != q {
		panic(fmt.Sprintf("band %d removed from %q but is not queued there", b.ID, q.name))
	}

	if b.link.prev == noBand {
		q.head = b.link.next
	} else {
		q.tbl.Band(b.link.prev).link.next = b.link.next
	}
	if b.link.next == noBand {
		q.tail = b.link.prev
	} else {
		q.tbl.Band(b.link.next).link.prev = b.link.prev
	}

	b.link = link{prev: noBand, next: noBand}
	q.n--
}

// PopFront removes and returns the first band, or nil if the queue is empty.
func (q *Queue) PopFront() *Band {
	b := q.Front()
	if b != nil {
		q.Remove(b)
	}
	return b
}

// Each calls fn for every queued band in order until fn returns false.
// fn may remove the band it was handed from the queue.
func (q *Queue) Each(fn func(b *Band) bool) {
	id := q.head
	for id != noBand {
		b := q.tbl.Band(id)
		next := b.link.next
		if !fn(b) {
			return
		}
		id = next
	}
}

// IDs returns the queued band IDs in order.
func (q *Queue) IDs() []uint64 {
	ids := make([]uint64, 0, q.n)
	q.Each(func(b *Band) bool {
		ids = append(ids, b.ID)
		return true
	})
	return ids
}

// Reset forgets every member without touching band links. Only valid when the
// table itself is being discarded.
func (q *Queue) Reset() {
	q.tbl = nil
	q.head, q.tail = noBand, noBand
	q.n = 0
}

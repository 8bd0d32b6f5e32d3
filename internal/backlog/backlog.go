// Package backlog implements the engine's item queue: an ordered,
// append-only-until-drained sequence with a consumption cursor.
package backlog

// Backlog holds not-yet-cleared items of a single run cycle. It is NOT safe
// for concurrent use on its own; the owning engine serializes access. The
// cursor marks the next unconsumed position and never exceeds the item count.
type Backlog[T any] struct {
	items  []T
	cursor int
}

// New returns an empty backlog.
func New[T any]() *Backlog[T] {
	return &Backlog[T]{}
}

// Append adds items at the tail, in call order. Appending never moves the
// cursor, so items appended mid-run are picked up by the next poll.
func (b *Backlog[T]) Append(items ...T) {
	b.items = append(b.items, items...)
}

// Next pops the item at the cursor and advances it. ok is false when the
// backlog is exhausted.
func (b *Backlog[T]) Next() (item T, ok bool) {
	if b.cursor >= len(b.items) {
		return item, false
	}
	item = b.items[b.cursor]
	b.cursor++
	return item, true
}

// Exhausted reports whether the cursor has reached the end of the items.
func (b *Backlog[T]) Exhausted() bool {
	return b.cursor >= len(b.items)
}

// Len returns the total number of items, consumed or not.
func (b *Backlog[T]) Len() int {
	return len(b.items)
}

// Cursor returns the next unconsumed position.
func (b *Backlog[T]) Cursor() int {
	return b.cursor
}

// Snapshot returns a copy of all items, consumed or not.
func (b *Backlog[T]) Snapshot() []T {
	out := make([]T, len(b.items))
	copy(out, b.items)
	return out
}

// Drain removes and returns all items, consumed or not, and resets the
// cursor. The end-of-run clear uses this to capture the run's item set.
func (b *Backlog[T]) Drain() []T {
	out := b.items
	b.items = nil
	b.cursor = 0
	return out
}

package util

import "github.com/negrel/assert"

func mod(a int, b int) int {
	return ((a % b) + b) % b
}

// ring-buffer queue, doubles in place when full
type Queue[T any] struct {
	data	[]T
	head	int // next slot to write to
	cnt 	int
}

func CreateQueue[T any](size int) Queue[T] {
	if size < 1 { size = 1 }
	return Queue[T] {
		head: 	0,
		cnt: 	0,
		data: 	make([]T, size),
	}
}

func (q *Queue[T]) Cnt() int {
	return q.cnt
}

func (q *Queue[T]) grow() {
	data := make([]T, len(q.data) * 2)
	for i := range q.cnt {
		data[i] = q.data[mod(q.head - q.cnt + i, len(q.data))]
	}
	q.data = data
	q.head = q.cnt
}

func (q *Queue[T]) Push(val T) {
	if q.cnt == len(q.data) { q.grow() }
	q.data[q.head] = val
	q.head = mod((q.head + 1), len(q.data))
	q.cnt++
}

func (q *Queue[T]) Peek() T {
	if q.cnt == 0 { panic("queue underflow") }
	return q.data[mod((q.head - q.cnt), len(q.data))]
}

func (q *Queue[T]) Pop() T {
	if q.cnt == 0 { panic("queue underflow") }
	i := mod((q.head - q.cnt), len(q.data))
	val := q.data[i]
	var zero T
	q.data[i] = zero // don't pin popped values
	q.cnt--
	return val
}

// Pops up to n values, oldest first.
func (q *Queue[T]) PopN(n int) []T {
	n = min(n, q.cnt)
	out := make([]T, 0, n)
	for range n {
		out = append(out, q.Pop())
	}
	return out
}

// Drops everything, returns how many were dropped.
func (q *Queue[T]) Clear() int {
	n := q.cnt
	for q.cnt > 0 { q.Pop() }
	return n
}


// TicketQueue combines a fixed contiguous array and a queue of numbered "tickets" which
// correspond to slots in the contiguous array. Tickets are small integers, so they can be
// handed to the kernel as io_uring user data in place of Go pointers.
type TicketQueue[T any] struct {
	queue		Queue[int]
	data		[]T
}

func CreateTicketQueue[T any](size int) TicketQueue[T] {
	queue := CreateQueue[int](size)
	for i := range size {
		queue.Push(i)
	}
	data := make([]T, size)

	return TicketQueue[T]{
		queue: queue,
		data: data,
	}
}

func (tq *TicketQueue[T]) Free() int {
	return tq.queue.Cnt()
}

// This acquires a ticket and sets the slot to the passed value. Callers bound
// concurrency externally (see iomgr opSem) so this never runs dry.
func (tq *TicketQueue[T]) Acq(val T) int {
	ticket := tq.queue.Pop()
	tq.data[ticket] = val
	return ticket
}

func (tq *TicketQueue[T]) Rel(ticket int) {
	assert.Less(tq.queue.Cnt(), len(tq.data), "ticket released twice")
	var zero T
	tq.data[ticket] = zero
	tq.queue.Push(ticket)
}

func (tq *TicketQueue[T]) Get(ticket int) T {
	return tq.data[ticket]
}

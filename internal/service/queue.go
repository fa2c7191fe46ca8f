package service

import (
	"sync"

	"traderboard/internal/command"
)

// cmdQueue is the multi-producer/single-consumer command queue. push never
// blocks and preserves arrival order; pop is non-blocking so the dispatch
// loop can also service window rollover. wake lets the consumer sleep
// between commands without missing one.
type cmdQueue struct {
	mu    sync.Mutex
	items []command.Command
	wake  chan struct{}
}

func newCmdQueue() *cmdQueue {
	return &cmdQueue{wake: make(chan struct{}, 1)}
}

func (q *cmdQueue) push(c command.Command) {
	q.mu.Lock()
	q.items = append(q.items, c)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *cmdQueue) pop() (command.Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	c := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return c, true
}

func (q *cmdQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

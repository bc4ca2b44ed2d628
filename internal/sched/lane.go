package sched

import (
	"github.com/emirpasic/gods/queues/linkedlistqueue"
)

// lane is a FIFO of tasks. It is not safe for concurrent use; State guards it.
type lane struct {
	q *linkedlistqueue.Queue
}

func newLane() lane {
	return lane{q: linkedlistqueue.New()}
}

func (l lane) push(t Task) {
	l.q.Enqueue(t)
}

func (l lane) pop() (Task, bool) {
	v, ok := l.q.Dequeue()
	if !ok {
		return nil, false
	}
	return v.(Task), true
}

func (l lane) len() int {
	return l.q.Size()
}

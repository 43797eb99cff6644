package sched

import "eclipseos/kernel/proc"

// readyQueueCapacity bounds the number of processes a per-CPU ready queue
// can hold.
const readyQueueCapacity = 256

type queueEntry struct {
	pid      proc.PID
	priority uint8
}

// readyQueue is a fixed-capacity ring of runnable PIDs. Insertion order is
// preserved so that popHighest dequeues equal-priority entries in FIFO order.
type readyQueue struct {
	entries [readyQueueCapacity]queueEntry
	head    int
	count   int
}

func (q *readyQueue) len() int { return q.count }

// push appends an entry to the queue tail. It returns false when the queue
// is full.
func (q *readyQueue) push(pid proc.PID, priority uint8) bool {
	if q.count == readyQueueCapacity {
		return false
	}
	q.entries[(q.head+q.count)%readyQueueCapacity] = queueEntry{pid: pid, priority: priority}
	q.count++
	return true
}

// popHighest removes and returns the earliest-queued entry among those with
// the highest priority.
func (q *readyQueue) popHighest() (proc.PID, bool) {
	if q.count == 0 {
		return 0, false
	}

	best := 0
	for index := 1; index < q.count; index++ {
		if q.at(index).priority > q.at(best).priority {
			best = index
		}
	}

	pid := q.at(best).pid
	q.removeAt(best)
	return pid, true
}

// remove deletes every entry referencing pid. It returns true if at least one
// entry was removed.
func (q *readyQueue) remove(pid proc.PID) bool {
	removed := false
	for index := 0; index < q.count; {
		if q.at(index).pid == pid {
			q.removeAt(index)
			removed = true
			continue
		}
		index++
	}
	return removed
}

func (q *readyQueue) at(index int) *queueEntry {
	return &q.entries[(q.head+index)%readyQueueCapacity]
}

// removeAt deletes the entry at the given logical index, shifting later
// entries forward so FIFO order among the survivors is preserved.
func (q *readyQueue) removeAt(index int) {
	for ; index < q.count-1; index++ {
		*q.at(index) = *q.at(index + 1)
	}
	q.count--
}

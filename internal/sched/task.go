package sched

// Task is one unit of deferred work. Run executes synchronously to completion
// and may enqueue further tasks, into either lane, as a side effect.
//
// Failures are the task's own concern: the scheduler neither inspects nor
// retries a task once it has been popped.
type Task interface {
	Run()
}

// TaskFunc adapts an ordinary function to a Task.
type TaskFunc func()

func (f TaskFunc) Run() { f() }

// Lane identifies one of the two FIFO queues.
type Lane int

const (
	LaneNormal Lane = iota
	LaneHigh
)

func (l Lane) String() string {
	switch l {
	case LaneNormal:
		return "normal"
	case LaneHigh:
		return "high"
	default:
		return "unknown"
	}
}

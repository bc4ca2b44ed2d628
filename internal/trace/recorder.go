// Package trace records scheduler status events as CSV rows and log lines.
package trace

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joeycumines/logiface"

	"coopq/internal/sched"
)

var header = []string{"timestamp", "event", "cycle", "lane", "ran_high", "ran_normal", "budget", "remaining"}

// Recorder consumes [sched.StatusEvent] values via [Recorder.Observe].
// Enqueue events are counted but not written, for brevity.
type Recorder struct {
	mu        sync.Mutex
	logger    *logiface.Logger[logiface.Event]
	csvFile   io.Closer
	csvWriter *csv.Writer
	enqueued  [2]uint64
}

// NewRecorder returns a Recorder that logs cycle summaries to logger. A nil
// logger is allowed.
func NewRecorder(logger *logiface.Logger[logiface.Event]) *Recorder {
	return &Recorder{logger: logger}
}

// EnableCSV writes every non-enqueue event to w.
func (r *Recorder) EnableCSV(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	cw.Flush()
	r.csvWriter = cw
	return cw.Error()
}

// EnableCSVFile creates path and writes CSV rows to it. Close releases it.
func (r *Recorder) EnableCSVFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.EnableCSV(f); err != nil {
		_ = f.Close()
		return err
	}
	r.mu.Lock()
	r.csvFile = f
	r.mu.Unlock()
	return nil
}

// Observe records ev. Pass it to [sched.WithObserver].
func (r *Recorder) Observe(ev sched.StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case sched.StatusEnqueue:
		if ev.Lane == sched.LaneHigh {
			r.enqueued[1]++
		} else {
			r.enqueued[0]++
		}
		return
	case sched.StatusCycleDone, sched.StatusEscalate:
		r.logger.Debug().
			Str("event", ev.Kind.String()).
			Uint64("cycle", ev.Cycle).
			Uint64("ran_high", ev.RanHigh).
			Uint64("ran_normal", ev.RanNormal).
			Int("remaining", ev.Remaining).
			Log("drain cycle finished")
	}

	if r.csvWriter == nil {
		return
	}
	_ = r.csvWriter.Write([]string{
		ev.Time.Format(time.RFC3339Nano),
		ev.Kind.String(),
		strconv.FormatUint(ev.Cycle, 10),
		ev.Lane.String(),
		strconv.FormatUint(ev.RanHigh, 10),
		strconv.FormatUint(ev.RanNormal, 10),
		strconv.FormatUint(uint64(ev.Budget), 10),
		strconv.Itoa(ev.Remaining),
	})
	r.csvWriter.Flush()
}

// Enqueued returns how many enqueue events were seen per lane.
func (r *Recorder) Enqueued() (high, normal uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enqueued[1], r.enqueued[0]
}

// Close flushes and closes the CSV file, if EnableCSVFile opened one.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.csvWriter != nil {
		r.csvWriter.Flush()
	}
	if r.csvFile == nil {
		return nil
	}
	err := r.csvFile.Close()
	r.csvFile = nil
	return err
}

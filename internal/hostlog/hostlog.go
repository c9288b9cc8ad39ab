// Package hostlog implements a host.MessageSink that timestamps each
// diagnostic line and renders byte counts and durations in human terms,
// the way a CLI or server embedding the engine would want its evaluation
// log to read.
package hostlog

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Sink is a host.MessageSink that writes one timestamped line per
// message to w. Safe for concurrent use by multiple EvaluateParallel
// workers.
type Sink struct {
	w     io.Writer
	mu    sync.Mutex
	start time.Time
}

// New wraps w (e.g. os.Stderr) as a MessageSink. started is the time
// evaluation began, used to render elapsed-time messages with
// humanize.RelTime.
func New(w io.Writer, started time.Time) *Sink {
	return &Sink{w: w, start: started}
}

// Message writes line prefixed with a humanized elapsed-time marker.
func (s *Sink) Message(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	elapsed := time.Since(s.start)
	fmt.Fprintf(s.w, "[%s] %s\n", humanizeElapsed(elapsed), line)
}

// BatchSummary logs one line summarizing a finished batch: row count,
// the size of its undef mask in human-readable bytes, and how long the
// batch took to evaluate.
func (s *Sink) BatchSummary(nRows int, undefMaskLen int, took time.Duration) {
	s.Message(fmt.Sprintf("evaluated %s rows, undef mask %s, took %s",
		humanize.Comma(int64(nRows)), humanize.Bytes(uint64(undefMaskLen)), took))
}

func humanizeElapsed(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Microsecond).String()
	}
	return humanize.RelTime(time.Now().Add(-d), time.Now(), "ago", "")
}

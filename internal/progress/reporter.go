package progress

import (
	"bytes"
	"sync"

	"github.com/quantmind-br/remotefetch/internal/domain"
)

// LineFunc receives one side-band progress line without its terminator
type LineFunc func(line string) error

// TransferFunc receives one transfer statistics snapshot
type TransferFunc func(stats domain.TransferStats) error

// Reporter dispatches side-band text and transfer statistics to caller
// callbacks. The first callback failure is latched and every later call
// returns it, which the transport treats as an abort.
type Reporter struct {
	onLine     LineFunc
	onTransfer TransferFunc

	mu      sync.Mutex
	pending []byte
	last    domain.TransferStats
	started bool
	err     error
}

// ReporterOptions contains options for creating a Reporter
type ReporterOptions struct {
	Progress         LineFunc
	TransferProgress TransferFunc
}

// NewReporter creates a new Reporter. Nil callbacks are skipped.
func NewReporter(opts ReporterOptions) *Reporter {
	return &Reporter{
		onLine:     opts.Progress,
		onTransfer: opts.TransferProgress,
	}
}

// Write implements io.Writer over the side-band progress channel. Every
// line terminated by '\n' or '\r' is delivered immediately; a trailing
// fragment waits for its terminator or for Flush.
func (r *Reporter) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return 0, r.err
	}
	if r.onLine == nil {
		return len(p), nil
	}

	data := append(r.pending, p...)
	r.pending = nil
	for {
		i := bytes.IndexAny(data, "\r\n")
		if i < 0 {
			break
		}
		line := data[:i]
		data = data[i+1:]
		if len(line) == 0 {
			continue
		}
		if err := r.emitLine(string(line)); err != nil {
			return 0, err
		}
	}
	if len(data) > 0 {
		r.pending = append([]byte{}, data...)
	}
	return len(p), nil
}

// Flush delivers a pending unterminated fragment
func (r *Reporter) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}
	if len(r.pending) == 0 || r.onLine == nil {
		return nil
	}
	line := string(r.pending)
	r.pending = nil
	return r.emitLine(line)
}

// Transfer delivers stats when any counter moved since the last snapshot
func (r *Reporter) Transfer(stats domain.TransferStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}
	if r.started && stats == r.last {
		return nil
	}
	r.started = true
	r.last = stats
	if r.onTransfer == nil {
		return nil
	}
	if err := r.onTransfer(stats); err != nil {
		r.err = domain.NewCallbackError("transfer_progress", err)
		return r.err
	}
	return nil
}

// Last returns the most recent snapshot and whether one was seen
func (r *Reporter) Last() (domain.TransferStats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.started
}

// Err returns the latched callback failure, if any
func (r *Reporter) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Reporter) emitLine(line string) error {
	if err := r.onLine(line); err != nil {
		r.err = domain.NewCallbackError("progress", err)
		return r.err
	}
	return nil
}

// Package debugger captures one request/response snapshot per outbound
// provider call so the dev-tools panel can inspect exactly what went over
// the wire.
package debugger

import (
	"sync"
	"time"
)

// Timing holds the start/end instants of one recorded call. End and
// DurationMs stay nil until the call completes; once set they are never
// overwritten, even if the record is completed again.
type Timing struct {
	Start      time.Time  `json:"start"`
	End        *time.Time `json:"end,omitempty"`
	DurationMs *int64     `json:"duration_ms,omitempty"`
}

// Record is the captured snapshot of a single HTTP call, keyed by an opaque
// call ID chosen by the caller.
type Record struct {
	URL             string            `json:"url"`
	Method          string            `json:"method"`
	RequestHeaders  map[string]string `json:"request_headers"`
	RequestBody     any               `json:"request_body,omitempty"`
	ResponseStatus  *int              `json:"response_status,omitempty"`
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`
	ResponseBody    any               `json:"response_body,omitempty"`
	Error           string            `json:"error,omitempty"`
	Timing          Timing            `json:"timing"`
}

// Listener receives the call ID and the record snapshot after every start or
// complete. Listeners run synchronously on the mutating goroutine and must
// not block.
type Listener func(id string, rec Record)

// Recorder owns the debug records. It is safe for concurrent use; distinct
// generation requests write to distinct call IDs so they never contend on a
// record, only on the map.
type Recorder struct {
	mu        sync.Mutex
	records   map[string]*Record
	listeners map[int]Listener
	nextSub   int
	now       func() time.Time
}

func New() *Recorder {
	return &Recorder{
		records:   make(map[string]*Record),
		listeners: make(map[int]Listener),
		now:       time.Now,
	}
}

// StartRequest registers a new record with the current time as start.
// An existing record under the same ID is overwritten.
func (r *Recorder) StartRequest(id, url, method string, headers map[string]string, body any) {
	r.mu.Lock()
	rec := &Record{
		URL:            url,
		Method:         method,
		RequestHeaders: headers,
		RequestBody:    body,
		Timing:         Timing{Start: r.now()},
	}
	r.records[id] = rec
	snapshot := *rec
	subs := r.snapshotListeners()
	r.mu.Unlock()

	notify(subs, id, snapshot)
}

// CompleteRequest finalizes the record under id. Completing an unknown ID
// first synthesizes a minimal started record, so a completion is never
// dropped. End and duration are computed on the first completion only;
// payload fields are last-writer-wins.
func (r *Recorder) CompleteRequest(id string, status int, headers map[string]string, body any, callErr string) {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		rec = &Record{
			URL:            "unknown",
			Method:         "unknown",
			RequestHeaders: map[string]string{},
			Timing:         Timing{Start: r.now()},
		}
		r.records[id] = rec
	}

	st := status
	rec.ResponseStatus = &st
	rec.ResponseHeaders = headers
	rec.ResponseBody = body
	rec.Error = callErr
	if rec.Timing.End == nil {
		end := r.now()
		dur := end.Sub(rec.Timing.Start).Milliseconds()
		rec.Timing.End = &end
		rec.Timing.DurationMs = &dur
	}
	snapshot := *rec
	subs := r.snapshotListeners()
	r.mu.Unlock()

	notify(subs, id, snapshot)
}

// Get returns the record for id, if any.
func (r *Recorder) Get(id string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Snapshot returns a copy of every record keyed by call ID. Mutating the
// result does not affect the recorder.
func (r *Recorder) Snapshot() map[string]Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Record, len(r.records))
	for id, rec := range r.records {
		out[id] = *rec
	}
	return out
}

// Subscribe registers a listener invoked on every start/complete and returns
// a function that removes it. No ordering is guaranteed between listeners.
func (r *Recorder) Subscribe(fn Listener) func() {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.listeners[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// Clear removes all records. It does not notify listeners: there is no
// per-record mutation to report, and stream consumers observe the empty
// state on their next snapshot read.
func (r *Recorder) Clear() {
	r.mu.Lock()
	r.records = make(map[string]*Record)
	r.mu.Unlock()
}

func (r *Recorder) snapshotListeners() []Listener {
	subs := make([]Listener, 0, len(r.listeners))
	for _, fn := range r.listeners {
		subs = append(subs, fn)
	}
	return subs
}

// notify runs outside the lock so a listener can call back into the recorder.
func notify(subs []Listener, id string, rec Record) {
	for _, fn := range subs {
		fn(id, rec)
	}
}

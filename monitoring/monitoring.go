// Package monitoring tracks each generation request end-to-end and keeps an
// append-only log of observability events. The dev-tools panel reads both
// through snapshot accessors and live updates through Subscribe.
package monitoring

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarn    Level = "warn"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// LogEntry is immutable once created; entries are kept in insertion order.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Details   any       `json:"details,omitempty"`
}

// RequestMetrics is the end-to-end record of one generation request. It is
// created in pending status and transitions exactly once to success or error.
type RequestMetrics struct {
	RequestID  string     `json:"request_id"`
	Prompt     string     `json:"prompt"`
	MediaType  MediaType  `json:"media_type,omitempty"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	DurationMs *int64     `json:"duration_ms,omitempty"`
	Status     Status     `json:"status"`
	MediaURI   string     `json:"media_uri,omitempty"`
	Error      any        `json:"error,omitempty"`
	Response   any        `json:"response,omitempty"`
}

// Store is the process-wide monitoring state. Callers must guarantee
// request-ID uniqueness; a reused ID overwrites the previous entry.
type Store struct {
	mu        sync.Mutex
	logs      []LogEntry
	requests  map[string]*RequestMetrics
	order     []string
	listeners map[int]func()
	nextSub   int
	now       func() time.Time
}

func NewStore() *Store {
	return &Store{
		requests:  make(map[string]*RequestMetrics),
		listeners: make(map[int]func()),
		now:       time.Now,
	}
}

// Log appends an entry and returns its generated ID.
func (s *Store) Log(level Level, message string, details any) string {
	s.mu.Lock()
	entry := LogEntry{
		ID:        uuid.NewString(),
		Timestamp: s.now(),
		Level:     level,
		Message:   message,
		Details:   details,
	}
	s.logs = append(s.logs, entry)
	subs := s.snapshotListeners()
	s.mu.Unlock()

	notify(subs)
	return entry.ID
}

// TrackRequest registers a pending request. mediaType may be empty; it is
// then inferred from the result at completion time.
func (s *Store) TrackRequest(requestID, prompt string, mediaType MediaType) {
	s.mu.Lock()
	if _, exists := s.requests[requestID]; !exists {
		s.order = append(s.order, requestID)
	}
	s.requests[requestID] = &RequestMetrics{
		RequestID: requestID,
		Prompt:    prompt,
		MediaType: mediaType,
		StartTime: s.now(),
		Status:    StatusPending,
	}
	s.mu.Unlock()

	kind := string(mediaType)
	if kind == "" {
		kind = "media"
	}
	s.Log(LevelInfo, "Starting "+kind+" generation request: "+requestID, map[string]any{"prompt": prompt})
}

// CompleteRequest transitions a pending request to success. Unknown IDs and
// already-terminal requests are ignored.
func (s *Store) CompleteRequest(requestID, mediaURI string, response any) {
	s.mu.Lock()
	req, ok := s.requests[requestID]
	if !ok || req.Status != StatusPending {
		s.mu.Unlock()
		return
	}

	end := s.now()
	dur := end.Sub(req.StartTime).Milliseconds()
	req.EndTime = &end
	req.DurationMs = &dur
	req.Status = StatusSuccess
	req.MediaURI = mediaURI
	req.Response = response
	if req.MediaType == "" {
		req.MediaType = inferMediaType(mediaURI)
	}
	mediaType := req.MediaType
	prompt := req.Prompt
	s.mu.Unlock()

	s.Log(LevelSuccess, titleFor(mediaType)+" generation successful: "+requestID, map[string]any{
		"duration_ms": dur,
		"prompt":      prompt,
	})
}

// FailRequest transitions a pending request to error. Unknown IDs and
// already-terminal requests are ignored.
func (s *Store) FailRequest(requestID string, reqErr any) {
	s.mu.Lock()
	req, ok := s.requests[requestID]
	if !ok || req.Status != StatusPending {
		s.mu.Unlock()
		return
	}

	end := s.now()
	dur := end.Sub(req.StartTime).Milliseconds()
	req.EndTime = &end
	req.DurationMs = &dur
	req.Status = StatusError
	req.Error = reqErr
	mediaType := req.MediaType
	prompt := req.Prompt
	s.mu.Unlock()

	s.Log(LevelError, titleFor(mediaType)+" generation failed: "+requestID, map[string]any{
		"error":       reqErr,
		"duration_ms": dur,
		"prompt":      prompt,
	})
}

// Logs returns a snapshot of all entries in insertion order.
func (s *Store) Logs() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LogEntry, len(s.logs))
	copy(out, s.logs)
	return out
}

// Request returns a snapshot of one request's metrics.
func (s *Store) Request(requestID string) (RequestMetrics, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return RequestMetrics{}, false
	}
	return *req, true
}

// Requests returns a snapshot of all request metrics in insertion order of
// their keys.
func (s *Store) Requests() []RequestMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RequestMetrics, 0, len(s.order))
	for _, id := range s.order {
		if req, ok := s.requests[id]; ok {
			out = append(out, *req)
		}
	}
	return out
}

// ClearLogs empties the log sequence. Request metrics are untouched.
func (s *Store) ClearLogs() {
	s.mu.Lock()
	s.logs = nil
	subs := s.snapshotListeners()
	s.mu.Unlock()

	notify(subs)
}

// Subscribe registers a callback invoked after every state-mutating
// operation and returns a function that removes it.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) snapshotListeners() []func() {
	subs := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func()) {
	for _, fn := range subs {
		fn()
	}
}

// inferMediaType reads the declared content type out of a data URI.
func inferMediaType(mediaURI string) MediaType {
	if strings.Contains(mediaURI, "video/") {
		return MediaVideo
	}
	return MediaImage
}

func titleFor(mt MediaType) string {
	if mt == MediaVideo {
		return "Video"
	}
	return "Image"
}

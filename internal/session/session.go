package session

import (
	"io"
	"sync"
	"time"

	apperrors "ceaiinsights/internal/errors"
	"ceaiinsights/models"

	"github.com/google/uuid"
)

// Session holds one browser's intake state. All transitions go through its
// methods, which check the current phase under the session mutex.
type Session struct {
	ID uuid.UUID

	mu       sync.Mutex
	state    State
	upload   uint64 // bumped on every Select; stale readers are ignored
	run      uint64
	lastSeen time.Time
}

func newSession(id uuid.UUID, now time.Time) *Session {
	return &Session{ID: id, state: Empty(), lastSeen: now}
}

// State returns a copy of the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen), s.state.Phase == PhaseAnalyzing
}

// Select starts accepting a file. Any prior result or error is cleared; an
// invalid type leaves the session Failed with no file. The returned token
// identifies this upload to Progress, Loaded and ReadFailed.
func (s *Session) Select(name, mediaType string, size int64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Phase == PhaseAnalyzing {
		return 0, apperrors.New(apperrors.CodeAnalysisInProgress, MsgInProgress)
	}

	s.upload++
	if !IsCSV(name, mediaType) {
		s.state = Failed(nil, "", MsgInvalidFileType)
		return s.upload, ErrInvalidFileType()
	}

	s.state = Reading(models.FileMeta{Name: name, Size: size}, 0)
	return s.upload, nil
}

// Progress records read progress for the upload identified by token
func (s *Session) Progress(token uint64, pct float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.upload || s.state.Phase != PhaseReading {
		return
	}
	if pct > 100 {
		pct = 100
	}
	if pct > s.state.Progress {
		s.state.Progress = pct
	}
}

// Loaded completes the read. Empty content fails the upload and clears the file.
func (s *Session) Loaded(token uint64, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.upload || s.state.Phase != PhaseReading {
		return nil
	}
	if content == "" {
		s.state = Failed(nil, "", MsgEmptyFile)
		return errEmptyFile()
	}
	s.state = Ready(*s.state.File, content)
	return nil
}

// ReadFailed ends the upload with err's user message and clears the file
func (s *Session) ReadFailed(token uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.upload || s.state.Phase != PhaseReading {
		return
	}
	s.state = Failed(nil, "", userMessage(err))
}

// Fail ends the current upload with err's user message and clears the file.
// It is used when a request is rejected before its file can be read.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Phase == PhaseAnalyzing {
		return
	}
	s.upload++
	s.state = Failed(nil, "", userMessage(err))
}

// Ingest runs a whole upload: type check, full read with progress, and the
// resulting transition.
func (s *Session) Ingest(name, mediaType string, size int64, r io.Reader, maxBytes int64) error {
	token, err := s.Select(name, mediaType, size)
	if err != nil {
		return err
	}

	content, err := ReadCSV(r, size, maxBytes, func(pct float64) {
		s.Progress(token, pct)
	})
	if err != nil {
		s.ReadFailed(token, err)
		return err
	}
	return s.Loaded(token, content)
}

// DropNothing handles a drop or selection with zero files: the outcome of the
// last submission is cleared and the held file, if any, is kept.
func (s *Session) DropNothing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = s.state.withoutOutcome()
}

// Ticket identifies one analysis started by BeginAnalysis
type Ticket struct {
	File    models.FileMeta
	Content string
	run     uint64
}

// BeginAnalysis moves the session to Analyzing and returns the content to submit.
// A session already analyzing is rejected; a session without content becomes
// Failed with the no-data message.
func (s *Session) BeginAnalysis() (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state.Phase == PhaseAnalyzing:
		return Ticket{}, apperrors.New(apperrors.CodeAnalysisInProgress, MsgInProgress)
	case s.state.Phase == PhaseReading:
		return Ticket{}, apperrors.New(apperrors.CodeNoFile, MsgNoData)
	case !s.state.HasContent():
		s.state = Failed(s.state.File, "", MsgNoData)
		return Ticket{}, apperrors.New(apperrors.CodeNoFile, MsgNoData)
	}

	s.run++
	file := *s.state.File
	s.state = Analyzing(file, s.state.content)
	return Ticket{File: file, Content: s.state.content, run: s.run}, nil
}

// Complete records the result of the analysis identified by ticket. Results of
// an analysis the session has since moved past are dropped.
func (s *Session) Complete(ticket Ticket, result models.AnalysisResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Phase != PhaseAnalyzing || ticket.run != s.run {
		return
	}
	file := *s.state.File
	if result.OK() {
		s.state = Success(file, s.state.content, result.Summary)
		return
	}
	s.state = Failed(&file, s.state.content, result.Error)
}

// Clear resets the session to Empty. A running analysis still completes but its
// result is discarded.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upload++
	s.run++
	s.state = Empty()
}

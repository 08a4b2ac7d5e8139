package session

import "ceaiinsights/models"

// Phase names the variant a State is in
type Phase string

const (
	PhaseEmpty     Phase = "empty"
	PhaseReading   Phase = "reading"
	PhaseReady     Phase = "ready"
	PhaseAnalyzing Phase = "analyzing"
	PhaseSuccess   Phase = "success"
	PhaseFailed    Phase = "failed"
)

// State is the single value a session holds. Which fields are meaningful depends
// on Phase; the constructors below are the only way to build one, so a summary
// and an error can never be set together.
type State struct {
	Phase    Phase            `json:"phase"`
	Progress float64          `json:"progress"`
	File     *models.FileMeta `json:"file,omitempty"`
	Summary  string           `json:"summary,omitempty"`
	Error    string           `json:"error,omitempty"`

	content string
}

func Empty() State {
	return State{Phase: PhaseEmpty}
}

func Reading(file models.FileMeta, progress float64) State {
	return State{Phase: PhaseReading, Progress: progress, File: &file}
}

func Ready(file models.FileMeta, content string) State {
	return State{Phase: PhaseReady, Progress: 100, File: &file, content: content}
}

func Analyzing(file models.FileMeta, content string) State {
	return State{Phase: PhaseAnalyzing, Progress: 100, File: &file, content: content}
}

func Success(file models.FileMeta, content, summary string) State {
	return State{Phase: PhaseSuccess, Progress: 100, File: &file, Summary: summary, content: content}
}

// Failed builds the error variant. file is nil when the failure also cleared the
// held file (intake failures); content is kept only alongside a file.
func Failed(file *models.FileMeta, content, message string) State {
	s := State{Phase: PhaseFailed, File: file, Error: message}
	if file != nil {
		s.Progress = 100
		s.content = content
	}
	return s
}

// Content returns the CSV text held by the state, if any
func (s State) Content() string {
	return s.content
}

// HasContent reports whether the state holds CSV text that can be analyzed
func (s State) HasContent() bool {
	return s.content != ""
}

// CanAnalyze reports whether a submission may start from this state
func (s State) CanAnalyze() bool {
	return s.HasContent() && s.Phase != PhaseAnalyzing && s.Phase != PhaseReading
}

// withoutOutcome drops a Success or Failed outcome, returning to the file held
// before it, or Empty when there is none.
func (s State) withoutOutcome() State {
	switch s.Phase {
	case PhaseSuccess, PhaseFailed:
		if s.File != nil && s.content != "" {
			return Ready(*s.File, s.content)
		}
		return Empty()
	default:
		return s
	}
}

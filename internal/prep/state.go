// Package prep prepares execution engines for the active question: it loads
// datasets into the analytical engine session and binds them into the
// interpreter runtime.
package prep

import "context"

// Phase is the analytical engine session phase.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseResetting Phase = "resetting"
	PhaseLoading   Phase = "loading"
	PhaseReady     Phase = "ready"
	PhaseFailed    Phase = "failed"
)

// SessionState is a snapshot of the engine session.
type SessionState struct {
	QuestionID string              `json:"question_id"`
	Token      uint64              `json:"token"`
	Phase      Phase               `json:"phase"`
	Error      string              `json:"error,omitempty"`
	Tables     []string            `json:"tables"`
	Mapping    map[string][]string `json:"mapping"`
}

func (s SessionState) clone() SessionState {
	out := s
	out.Tables = append([]string{}, s.Tables...)
	out.Mapping = make(map[string][]string, len(s.Mapping))
	for k, v := range s.Mapping {
		out.Mapping[k] = append([]string(nil), v...)
	}
	return out
}

// PhaseUpdate describes one committed phase transition.
type PhaseUpdate struct {
	QuestionID string
	Token      uint64
	Phase      Phase
	Error      string
}

// PhaseReporter observes engine session transitions.
type PhaseReporter interface {
	ReportPhase(ctx context.Context, update PhaseUpdate)
}

// LoadState is the interpreter load state of one dataset.
type LoadState string

const (
	LoadIdle    LoadState = "idle"
	LoadLoading LoadState = "loading"
	LoadLoaded  LoadState = "loaded"
	LoadFailed  LoadState = "failed"
)

// DatasetLoad is the interpreter load status of one dataset.
type DatasetLoad struct {
	DatasetID string    `json:"dataset_id"`
	Name      string    `json:"name"`
	Variable  string    `json:"variable"`
	State     LoadState `json:"state"`
	Message   string    `json:"message,omitempty"`
	Rows      int       `json:"rows"`
}

// LoadReporter observes interpreter load transitions.
type LoadReporter interface {
	ReportLoad(ctx context.Context, questionID string, load DatasetLoad)
}

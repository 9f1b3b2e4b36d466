// Package wizard holds the four-step project creation flow: upload files,
// detect candidate join columns, name the project, confirm and submit.
//
// State transitions live in a pure reducer; Controller layers the backend
// calls and in-flight guards on top of it.
package wizard

import (
	"strings"

	"github.com/joinhub/console/internal/models"
)

// Step is a wizard page, numbered from 1.
type Step int

const (
	StepUpload Step = iota + 1
	StepCandidates
	StepName
	StepConfirm
)

// MinFiles is the number of files a join needs.
const MinFiles = 2

func (s Step) String() string {
	switch s {
	case StepUpload:
		return "upload"
	case StepCandidates:
		return "candidates"
	case StepName:
		return "name"
	case StepConfirm:
		return "confirm"
	}
	return "unknown"
}

// ProcessingType selects what the backend does with a project.
type ProcessingType string

// ProcessingJoin is currently the only processing type.
const ProcessingJoin ProcessingType = "join"

// Valid reports whether t is a known processing type.
func (t ProcessingType) Valid() bool {
	return t == ProcessingJoin
}

// State is a snapshot of one wizard.
type State struct {
	Step           Step                      `json:"step"`
	Files          []models.UploadedFile     `json:"files"`
	Candidates     models.CandidateColumnMap `json:"candidateColumns"`
	ProjectName    string                    `json:"projectName"`
	ProcessingType ProcessingType            `json:"processingType"`
	Finding        bool                      `json:"finding"`
	FindCompleted  bool                      `json:"findCompleted"`
	Submitting     bool                      `json:"submitting"`
}

// Initial returns the state of a freshly opened wizard.
func Initial() State {
	return State{
		Step:           StepUpload,
		Files:          []models.UploadedFile{},
		Candidates:     models.CandidateColumnMap{},
		ProcessingType: ProcessingJoin,
	}
}

// CanProceed reports whether the current step allows moving on.
func (s State) CanProceed() bool {
	switch s.Step {
	case StepUpload:
		return len(s.Files) >= MinFiles
	case StepCandidates:
		return true
	case StepName:
		return strings.TrimSpace(s.ProjectName) != ""
	case StepConfirm:
		return true
	}
	return false
}

// CanSubmit reports whether the submit action is available.
func (s State) CanSubmit() bool {
	return s.Step == StepConfirm && strings.TrimSpace(s.ProjectName) != "" && !s.Submitting
}

// Clone returns a copy that shares no slices or maps with s.
func (s State) Clone() State {
	out := s
	out.Files = append([]models.UploadedFile{}, s.Files...)
	out.Candidates = s.Candidates.Clone()
	if out.Candidates == nil {
		out.Candidates = models.CandidateColumnMap{}
	}
	return out
}

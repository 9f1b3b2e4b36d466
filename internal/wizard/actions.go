package wizard

import "github.com/joinhub/console/internal/models"

// Action is a state transition understood by Reduce.
type Action interface {
	apply(State) State
}

// Reduce returns the state that results from applying a to s. s is not modified.
func Reduce(s State, a Action) State {
	return a.apply(s.Clone())
}

// AddFiles appends already accepted files, keeping their order.
type AddFiles struct {
	Files []models.UploadedFile
}

func (a AddFiles) apply(s State) State {
	s.Files = append(s.Files, a.Files...)
	return s
}

// RemoveFile drops the file at Index. Out of range indexes are ignored.
type RemoveFile struct {
	Index int
}

func (a RemoveFile) apply(s State) State {
	if a.Index < 0 || a.Index >= len(s.Files) {
		return s
	}
	s.Files = append(s.Files[:a.Index], s.Files[a.Index+1:]...)
	return s
}

// Next moves forward one step when the current step allows it.
type Next struct{}

func (Next) apply(s State) State {
	if s.Step >= StepConfirm || s.Submitting || !s.CanProceed() {
		return s
	}
	s.Step++
	return s
}

// Prev moves back one step.
type Prev struct{}

func (Prev) apply(s State) State {
	if s.Step <= StepUpload || s.Submitting {
		return s
	}
	s.Step--
	return s
}

// SetProjectName stores the name as entered.
type SetProjectName struct {
	Name string
}

func (a SetProjectName) apply(s State) State {
	s.ProjectName = a.Name
	return s
}

// SetProcessingType selects a processing type. Unknown types are ignored.
type SetProcessingType struct {
	Type ProcessingType
}

func (a SetProcessingType) apply(s State) State {
	if a.Type.Valid() {
		s.ProcessingType = a.Type
	}
	return s
}

// FindStarted marks candidate detection in flight.
type FindStarted struct{}

func (FindStarted) apply(s State) State {
	s.Finding = true
	return s
}

// FindSucceeded stores detected candidates. FindCompleted stays set until Reset
// even when the file list changes afterwards.
type FindSucceeded struct {
	Candidates models.CandidateColumnMap
}

func (a FindSucceeded) apply(s State) State {
	s.Finding = false
	s.FindCompleted = true
	s.Candidates = a.Candidates.Clone()
	if s.Candidates == nil {
		s.Candidates = models.CandidateColumnMap{}
	}
	return s
}

// FindFailed clears the in-flight flag and keeps everything else.
type FindFailed struct{}

func (FindFailed) apply(s State) State {
	s.Finding = false
	return s
}

// SubmitStarted marks submission in flight.
type SubmitStarted struct{}

func (SubmitStarted) apply(s State) State {
	s.Submitting = true
	return s
}

// SubmitFailed clears the in-flight flag so the user can retry.
type SubmitFailed struct{}

func (SubmitFailed) apply(s State) State {
	s.Submitting = false
	return s
}

// Reset returns to the initial state. Applying it twice is the same as once.
type Reset struct{}

func (Reset) apply(State) State {
	return Initial()
}

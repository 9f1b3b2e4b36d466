package wizard

import (
	"testing"

	"github.com/joinhub/console/internal/models"
	"github.com/stretchr/testify/assert"
)

func files(names ...string) []models.UploadedFile {
	out := make([]models.UploadedFile, len(names))
	for i, n := range names {
		out[i] = models.UploadedFile{ID: n, Name: n}
	}
	return out
}

func TestCanProceed(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  bool
	}{
		{name: "upload with no files", state: State{Step: StepUpload}, want: false},
		{name: "upload with one file", state: State{Step: StepUpload, Files: files("a.csv")}, want: false},
		{name: "upload with two files", state: State{Step: StepUpload, Files: files("a.csv", "b.csv")}, want: true},
		{name: "candidates always", state: State{Step: StepCandidates}, want: true},
		{name: "name empty", state: State{Step: StepName}, want: false},
		{name: "name whitespace", state: State{Step: StepName, ProjectName: "  \t"}, want: false},
		{name: "name demo", state: State{Step: StepName, ProjectName: "demo"}, want: true},
		{name: "confirm always", state: State{Step: StepConfirm}, want: true},
		{name: "invalid step", state: State{Step: 7}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.CanProceed())
		})
	}
}

func TestReduce_Navigation(t *testing.T) {
	s := Initial()

	s = Reduce(s, Next{})
	assert.Equal(t, StepUpload, s.Step, "gate closed without files")

	s = Reduce(s, AddFiles{Files: files("a.csv", "b.csv")})
	s = Reduce(s, Next{})
	assert.Equal(t, StepCandidates, s.Step)

	s = Reduce(s, Next{})
	assert.Equal(t, StepName, s.Step)

	s = Reduce(s, SetProjectName{Name: "   "})
	s = Reduce(s, Next{})
	assert.Equal(t, StepName, s.Step, "gate closed for blank name")

	s = Reduce(s, SetProjectName{Name: "demo"})
	s = Reduce(s, Next{})
	assert.Equal(t, StepConfirm, s.Step)

	s = Reduce(s, Next{})
	assert.Equal(t, StepConfirm, s.Step, "no step beyond confirm")

	for i := 0; i < 5; i++ {
		s = Reduce(s, Prev{})
	}
	assert.Equal(t, StepUpload, s.Step)
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	s := Reduce(Initial(), AddFiles{Files: files("a.csv", "b.csv", "c.csv")})
	before := s.Clone()

	_ = Reduce(s, RemoveFile{Index: 0})
	_ = Reduce(s, FindSucceeded{Candidates: models.CandidateColumnMap{"a.csv": {"id"}}})

	assert.Equal(t, before, s)
}

func TestReduce_RemoveFile(t *testing.T) {
	s := Reduce(Initial(), AddFiles{Files: files("a.csv", "b.csv", "a.csv")})

	tests := []struct {
		name  string
		index int
		want  []string
	}{
		{name: "first", index: 0, want: []string{"b.csv", "a.csv"}},
		{name: "last", index: 2, want: []string{"a.csv", "b.csv"}},
		{name: "negative", index: -1, want: []string{"a.csv", "b.csv", "a.csv"}},
		{name: "past end", index: 3, want: []string{"a.csv", "b.csv", "a.csv"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reduce(s, RemoveFile{Index: tt.index})
			assert.Equal(t, tt.want, models.FileNames(got.Files))
		})
	}
}

func TestReduce_Reset(t *testing.T) {
	populated := State{
		Step:           StepConfirm,
		Files:          files("a.csv", "b.csv"),
		Candidates:     models.CandidateColumnMap{"a.csv": {"id"}},
		ProjectName:    "demo",
		ProcessingType: ProcessingJoin,
		Finding:        true,
		FindCompleted:  true,
		Submitting:     true,
	}

	for _, start := range []State{Initial(), populated, {Step: StepName, ProjectName: "x"}} {
		once := Reduce(start, Reset{})
		twice := Reduce(once, Reset{})

		assert.Equal(t, StepUpload, once.Step)
		assert.Empty(t, once.Files)
		assert.Equal(t, 0, once.Candidates.Len())
		assert.Empty(t, once.ProjectName)
		assert.False(t, once.Finding)
		assert.False(t, once.FindCompleted)
		assert.False(t, once.Submitting)
		assert.Equal(t, ProcessingJoin, once.ProcessingType)
		assert.Equal(t, once, twice)
	}
}

func TestReduce_FindCompletedIsSticky(t *testing.T) {
	s := Reduce(Initial(), AddFiles{Files: files("a.csv", "b.csv")})
	s = Reduce(s, FindStarted{})
	s = Reduce(s, FindSucceeded{Candidates: models.CandidateColumnMap{"a.csv": {"id"}, "b.csv": {"id"}}})
	assert.True(t, s.FindCompleted)
	assert.False(t, s.Finding)

	s = Reduce(s, RemoveFile{Index: 1})
	s = Reduce(s, FindStarted{})
	s = Reduce(s, FindFailed{})

	assert.True(t, s.FindCompleted)
	assert.False(t, s.Finding)
	assert.Equal(t, 2, s.Candidates.Len(), "stale candidates survive file edits")
}

func TestReduce_SetProcessingType(t *testing.T) {
	s := Reduce(Initial(), SetProcessingType{Type: "merge"})
	assert.Equal(t, ProcessingJoin, s.ProcessingType)
}

func TestReduce_NavigationBlockedWhileSubmitting(t *testing.T) {
	s := State{Step: StepName, ProjectName: "demo", Submitting: true}
	assert.Equal(t, StepName, Reduce(s, Next{}).Step)
	assert.Equal(t, StepName, Reduce(s, Prev{}).Step)
}

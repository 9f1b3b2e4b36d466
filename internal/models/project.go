package models

import "sort"

// ProjectStatus is the processing status of a join project.
type ProjectStatus string

const (
	ProjectStatusIdle   ProjectStatus = "idle"
	ProjectStatusActive ProjectStatus = "active"
	ProjectStatusDone   ProjectStatus = "done"
)

// Valid reports whether s is a known processing status.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusIdle, ProjectStatusActive, ProjectStatusDone:
		return true
	}
	return false
}

// CandidateColumnMap maps a file name to the columns judged plausible as join keys.
type CandidateColumnMap map[string][]string

// Len returns the number of files with candidates.
func (m CandidateColumnMap) Len() int {
	return len(m)
}

// Clone returns a deep copy; a nil map clones to nil.
func (m CandidateColumnMap) Clone() CandidateColumnMap {
	if m == nil {
		return nil
	}
	out := make(CandidateColumnMap, len(m))
	for name, cols := range m {
		out[name] = append([]string(nil), cols...)
	}
	return out
}

// FileNames returns the keys in sorted order.
func (m CandidateColumnMap) FileNames() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Project is a join project as reported by the join backend.
// The backend keys projects by id, so ID is filled in by the client.
type Project struct {
	ID               string             `json:"id,omitempty" msgpack:"id" yaml:"id"`
	Name             string             `json:"projectName" msgpack:"projectName" yaml:"projectName"`
	CreatedAt        string             `json:"createdAt" msgpack:"createdAt" yaml:"createdAt"`
	Status           ProjectStatus      `json:"status" msgpack:"status" yaml:"status"`
	Files            []string           `json:"files" msgpack:"files" yaml:"files"`
	CandidateColumns CandidateColumnMap `json:"candidateColumns,omitempty" msgpack:"candidateColumns" yaml:"candidateColumns,omitempty"`
	CI               bool               `json:"ci,omitempty" msgpack:"ci" yaml:"ci"`
}

// StatusCounts summarizes a project collection by processing status.
type StatusCounts struct {
	Done   int `json:"done"`
	Active int `json:"active"`
	Idle   int `json:"idle"`
	Total  int `json:"total"`
}

// CountByStatus tallies projects per status. Unknown statuses only count toward Total.
func CountByStatus(projects map[string]Project) StatusCounts {
	var c StatusCounts
	for _, p := range projects {
		c.Total++
		switch p.Status {
		case ProjectStatusDone:
			c.Done++
		case ProjectStatusActive:
			c.Active++
		case ProjectStatusIdle:
			c.Idle++
		}
	}
	return c
}

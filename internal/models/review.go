package models

// ReviewStatus is the moderation state of a join request.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"

	// ReviewStatusAll is the list filter that matches every entry.
	ReviewStatusAll ReviewStatus = ""
)

// ParseReviewFilter maps a filter name to a status. "all" and "" both mean no filter.
func ParseReviewFilter(s string) (ReviewStatus, bool) {
	switch s {
	case "", "all":
		return ReviewStatusAll, true
	case string(ReviewStatusPending), string(ReviewStatusApproved), string(ReviewStatusRejected):
		return ReviewStatus(s), true
	}
	return "", false
}

// Review holds the moderation part of a review entry.
type Review struct {
	Status ReviewStatus `json:"status" yaml:"status"`
}

// ReviewEntry is a join request seen by administrators.
// Review.Status and Status are independent: moderation versus processing.
type ReviewEntry struct {
	ID          string        `json:"id" yaml:"id"`
	ProjectName string        `json:"projectName" yaml:"projectName"`
	CreatedAt   string        `json:"createdAt" yaml:"createdAt"`
	Files       []string      `json:"files" yaml:"files"`
	Review      *Review       `json:"review,omitempty" yaml:"review,omitempty"`
	Status      ProjectStatus `json:"status" yaml:"status"`
}

// ModerationStatus returns the moderation status, empty when the backend sent none.
func (e ReviewEntry) ModerationStatus() ReviewStatus {
	if e.Review == nil {
		return ""
	}
	return e.Review.Status
}

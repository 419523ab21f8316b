package valueobjects

import "errors"

// LearnerID identifies the learner owning a schedule. Learner identifiers come
// from the identity provider, so they are opaque non-empty strings rather
// than UUIDs.
type LearnerID struct {
	value string
}

// NewLearnerID creates a LearnerID from an identity provider subject
func NewLearnerID(id string) (LearnerID, error) {
	if id == "" {
		return LearnerID{}, errors.New("learner ID cannot be empty")
	}
	return LearnerID{value: id}, nil
}

// String returns the string representation of the LearnerID
func (id LearnerID) String() string {
	return id.value
}

// Equals checks if two LearnerIDs are equal
func (id LearnerID) Equals(other LearnerID) bool {
	return id.value == other.value
}

// IsZero checks if the LearnerID is the zero value
func (id LearnerID) IsZero() bool {
	return id.value == ""
}

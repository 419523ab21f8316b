package valueobjects

import "fmt"

// Difficulty is a normalized difficulty rating in [0, 1], where 0 is trivial
// and 1 is the hardest material in the corpus
type Difficulty struct {
	value float64
}

// NewDifficulty creates a difficulty with validation
func NewDifficulty(value float64) (Difficulty, error) {
	if value < 0 || value > 1 {
		return Difficulty{}, fmt.Errorf("difficulty must be in [0, 1], got %g", value)
	}
	return Difficulty{value: value}, nil
}

// Value returns the raw difficulty
func (d Difficulty) Value() float64 {
	return d.value
}

// Equals checks if two difficulties are equal
func (d Difficulty) Equals(other Difficulty) bool {
	return d.value == other.value
}

package valueobjects

import (
	"errors"

	"github.com/google/uuid"
)

// UnitID is a value object identifying a material unit
type UnitID struct {
	value string
}

// NewUnitID creates a new random UnitID
func NewUnitID() UnitID {
	return UnitID{value: uuid.New().String()}
}

// NewUnitIDFromString creates a UnitID from an existing string
func NewUnitIDFromString(id string) (UnitID, error) {
	if id == "" {
		return UnitID{}, errors.New("unit ID cannot be empty")
	}
	if !isValidUUID(id) {
		return UnitID{}, errors.New("unit ID must be a valid UUID")
	}
	return UnitID{value: id}, nil
}

// String returns the string representation of the UnitID
func (id UnitID) String() string {
	return id.value
}

// Equals checks if two UnitIDs are equal
func (id UnitID) Equals(other UnitID) bool {
	return id.value == other.value
}

// IsZero checks if the UnitID is the zero value
func (id UnitID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id UnitID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *UnitID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("UnitID must be a string")
	}
	id.value = string(data[1 : len(data)-1])
	return nil
}

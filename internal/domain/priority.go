package domain

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// ErrInvalidPriority is returned when an invalid priority value is provided
var ErrInvalidPriority = errors.New("invalid priority value")

// Priority is an immutable job priority value object
type Priority struct {
	value string
}

const (
	priorityLow      = "LOW"
	priorityMedium   = "MEDIUM"
	priorityHigh     = "HIGH"
	priorityCritical = "CRITICAL"
)

// Predefined Priority instances
var (
	PriorityLow      = Priority{value: priorityLow}
	PriorityMedium   = Priority{value: priorityMedium}
	PriorityHigh     = Priority{value: priorityHigh}
	PriorityCritical = Priority{value: priorityCritical}
)

// NewPriority creates a Priority with validation
func NewPriority(p string) (Priority, error) {
	switch p {
	case priorityLow, priorityMedium, priorityHigh, priorityCritical:
		return Priority{value: p}, nil
	default:
		return Priority{}, ErrInvalidPriority
	}
}

// String returns the string representation of the priority
func (p Priority) String() string {
	return p.value
}

// IsZero reports whether the priority was never set
func (p Priority) IsZero() bool {
	return p.value == ""
}

// IsHigherThan returns true if this priority is more urgent than the other
func (p Priority) IsHigherThan(other Priority) bool {
	return p.rank() > other.rank()
}

func (p Priority) rank() int {
	switch p.value {
	case priorityCritical:
		return 4
	case priorityHigh:
		return 3
	case priorityMedium:
		return 2
	case priorityLow:
		return 1
	default:
		return 0
	}
}

// MarshalText implements encoding.TextMarshaler for JSON/BSON serialization
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.value), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for JSON/BSON deserialization
func (p *Priority) UnmarshalText(text []byte) error {
	priority, err := NewPriority(string(text))
	if err != nil {
		return err
	}
	*p = priority
	return nil
}

// MarshalBSONValue stores the priority as a plain string
func (p Priority) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(p.value)
}

// UnmarshalBSONValue reads a priority stored as a plain string
func (p *Priority) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	s, ok := raw.StringValueOK()
	if !ok {
		return ErrInvalidPriority
	}
	return p.UnmarshalText([]byte(s))
}

package valueobjects

import (
	"errors"

	"github.com/google/uuid"
)

// NodeID is a value object identifying a card or folder.
// IDs are opaque and stable; new ones are minted as UUIDs but any non-empty
// string read back from the store is accepted.
type NodeID struct {
	value string
}

// RootID is the sentinel for "attached at the top level".
// It is the zero NodeID; a node whose parent IsZero sits at the root.
var RootID = NodeID{}

// NewNodeID creates a new random NodeID
func NewNodeID() NodeID {
	return NodeID{value: uuid.New().String()}
}

// NewNodeIDFromString creates a NodeID from an existing identifier
func NewNodeIDFromString(id string) (NodeID, error) {
	if id == "" {
		return NodeID{}, errors.New("node ID cannot be empty")
	}
	return NodeID{value: id}, nil
}

// String returns the string representation of the NodeID
func (id NodeID) String() string {
	return id.value
}

// Equals checks if two NodeIDs are equal
func (id NodeID) Equals(other NodeID) bool {
	return id.value == other.value
}

// IsZero reports whether the NodeID is the root sentinel
func (id NodeID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler; the root sentinel serializes as null
func (id NodeID) MarshalJSON() ([]byte, error) {
	if id.value == "" {
		return []byte("null"), nil
	}
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *NodeID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		id.value = ""
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("NodeID must be a string or null")
	}
	id.value = string(data[1 : len(data)-1])
	return nil
}

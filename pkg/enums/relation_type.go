package enums

import "fmt"

// RelationType names the output link a processed message is dispatched on.
type RelationType string

const (
	RelationSuccess RelationType = "Success"
	RelationFailure RelationType = "Failure"
)

var validRelationTypes = []RelationType{
	RelationSuccess,
	RelationFailure,
}

// IsValid reports whether the value matches a known relation.
func (r RelationType) IsValid() bool {
	for _, candidate := range validRelationTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRelationType converts raw input into RelationType.
func ParseRelationType(value string) (RelationType, error) {
	for _, candidate := range validRelationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid relation type %q", value)
}

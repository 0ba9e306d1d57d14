package entities

import "fmt"

// EntityType identifies a kind of platform content
type EntityType string

const (
	EntityResource EntityType = "resource"
	EntityPost     EntityType = "post"
	EntityCategory EntityType = "category"
	EntityTag      EntityType = "tag"
)

// ContentKinds are the entity types that appear as records in search results
var ContentKinds = []EntityType{EntityResource, EntityPost}

// IsContent reports whether records of this type are embedded in cached result sets
func (t EntityType) IsContent() bool {
	return t == EntityResource || t == EntityPost
}

// ParseEntityType validates a raw entity type
func ParseEntityType(raw string) (EntityType, error) {
	switch t := EntityType(raw); t {
	case EntityResource, EntityPost, EntityCategory, EntityTag:
		return t, nil
	default:
		return "", fmt.Errorf("unknown entity type %q", raw)
	}
}

// InvalidationAction is the mutation that produced an InvalidationSignal
type InvalidationAction string

const (
	ActionCreate InvalidationAction = "create"
	ActionUpdate InvalidationAction = "update"
	ActionDelete InvalidationAction = "delete"
)

// InvalidationSignal is emitted by content mutations
type InvalidationSignal struct {
	EntityType EntityType         `json:"entityType"`
	Action     InvalidationAction `json:"action"`
}

// RemovesContent reports whether the mutation can take a resource or post out
// of search results: a delete, or an update that may have archived it. An
// unnecessary sweep finds an empty invalid set and evicts nothing.
func (s InvalidationSignal) RemovesContent() bool {
	return s.EntityType.IsContent() && (s.Action == ActionDelete || s.Action == ActionUpdate)
}

// Validate checks both fields against their enums
func (s InvalidationSignal) Validate() error {
	if _, err := ParseEntityType(string(s.EntityType)); err != nil {
		return err
	}
	switch s.Action {
	case ActionCreate, ActionUpdate, ActionDelete:
		return nil
	default:
		return fmt.Errorf("unknown invalidation action %q", s.Action)
	}
}

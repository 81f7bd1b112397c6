package persistence

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FieldUpdate sets or removes the value at Path. Path elements address
// nested objects, so keys containing dots are safe.
type FieldUpdate struct {
	Path   []string
	Value  any
	Remove bool
}

// Set returns an update assigning value at path.
func Set(value any, path ...string) FieldUpdate {
	return FieldUpdate{Path: path, Value: value}
}

// Remove returns an update deleting the field at path.
func Remove(path ...string) FieldUpdate {
	return FieldUpdate{Path: path, Remove: true}
}

func (u FieldUpdate) String() string {
	if u.Remove {
		return "remove " + strings.Join(u.Path, ".")
	}
	return "set " + strings.Join(u.Path, ".")
}

// EncodeDocument marshals doc as a JSON object with its "id" field set.
func EncodeDocument(id string, doc any) (json.RawMessage, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("persistence: encode document: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: document must be a JSON object", ErrConstraintViolation)
	}
	fields["id"] = id
	return json.Marshal(fields)
}

// ApplyUpdates returns body with updates applied in order. Intermediate
// objects are created as needed; removing a missing field is a no-op.
func ApplyUpdates(body json.RawMessage, updates []FieldUpdate) (json.RawMessage, error) {
	fields := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, fmt.Errorf("persistence: decode document: %w", err)
		}
	}
	for _, update := range updates {
		if len(update.Path) == 0 {
			return nil, fmt.Errorf("%w: empty update path", ErrConstraintViolation)
		}
		if update.Path[0] == "id" {
			return nil, fmt.Errorf("%w: id cannot be updated", ErrConstraintViolation)
		}
		if err := applyUpdate(fields, update); err != nil {
			return nil, err
		}
	}
	return json.Marshal(fields)
}

func applyUpdate(fields map[string]any, update FieldUpdate) error {
	parent := fields
	for _, key := range update.Path[:len(update.Path)-1] {
		next, ok := parent[key].(map[string]any)
		if !ok {
			if update.Remove {
				return nil
			}
			next = map[string]any{}
			parent[key] = next
		}
		parent = next
	}
	leaf := update.Path[len(update.Path)-1]
	if update.Remove {
		delete(parent, leaf)
		return nil
	}
	normalized, err := normalizeValue(update.Value)
	if err != nil {
		return fmt.Errorf("persistence: %s: %w", update, err)
	}
	parent[leaf] = normalized
	return nil
}

func normalizeValue(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

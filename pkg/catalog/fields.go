package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/speleodb/speleodb/pkg/kv"
)

// Field types accepted in a project field set.
const (
	FieldTypeText   = "text"
	FieldTypeInt    = "int"
	FieldTypeFloat  = "float"
	FieldTypeBool   = "bool"
	FieldTypeSelect = "select"
)

var fieldTypes = map[string]bool{
	FieldTypeText:   true,
	FieldTypeInt:    true,
	FieldTypeFloat:  true,
	FieldTypeBool:   true,
	FieldTypeSelect: true,
}

// FieldDef is a single custom survey field definition. The Type of a field is
// immutable once persisted: updates diff the incoming set against the stored
// one and reject type changes for a kept id.
type FieldDef struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Order    int      `json:"order"`
	Options  []string `json:"options,omitempty"`
}

func fieldSetKey(projectID string) []byte {
	return []byte(kv.FormatPath(fieldSetsPrefix, projectID))
}

func validateFieldSet(fields []FieldDef) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("%w: field without name", ErrInvalidFieldSet)
		}
		if !fieldTypes[f.Type] {
			return fmt.Errorf("%w: unknown type %q for field %s", ErrInvalidFieldSet, f.Type, f.Name)
		}
		if f.Type == FieldTypeSelect && len(f.Options) == 0 {
			return fmt.Errorf("%w: select field %s without options", ErrInvalidFieldSet, f.Name)
		}
		if f.Type != FieldTypeSelect && len(f.Options) > 0 {
			return fmt.Errorf("%w: options on non-select field %s", ErrInvalidFieldSet, f.Name)
		}
		if f.ID != "" {
			if seen[f.ID] {
				return fmt.Errorf("%w: duplicate field id %s", ErrInvalidFieldSet, f.ID)
			}
			seen[f.ID] = true
		}
	}
	return nil
}

// GetFieldSet returns the project's field definitions, ordered.
func (c *Catalog) GetFieldSet(ctx context.Context, projectID string) ([]FieldDef, error) {
	value, err := c.store.Get(ctx, fieldSetKey(projectID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var fields []FieldDef
	if err := json.Unmarshal(value, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// UpdateFieldSet replaces the project's field definitions. New fields (empty
// id) get generated ids. Kept fields may rename or reorder, but changing the
// type of an existing field is rejected - stored data depends on it.
func (c *Catalog) UpdateFieldSet(ctx context.Context, projectID string, fields []FieldDef, user string) ([]FieldDef, error) {
	if err := validateFieldSet(fields); err != nil {
		return nil, err
	}
	current, err := c.GetFieldSet(ctx, projectID)
	if err != nil {
		return nil, err
	}
	currentByID := make(map[string]FieldDef, len(current))
	for _, f := range current {
		currentByID[f.ID] = f
	}

	next := make([]FieldDef, len(fields))
	for i, f := range fields {
		if f.ID == "" {
			f.ID = uuid.New().String()
		} else {
			prev, ok := currentByID[f.ID]
			if !ok {
				return nil, fmt.Errorf("%w: unknown field id %s", ErrInvalidFieldSet, f.ID)
			}
			if prev.Type != f.Type {
				return nil, fmt.Errorf("%w: field %s type %s", ErrFieldSetImmutable, f.ID, prev.Type)
			}
		}
		next[i] = f
	}
	sort.SliceStable(next, func(i, j int) bool { return next[i].Order < next[j].Order })

	value, err := json.Marshal(next)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, fieldSetKey(projectID), value); err != nil {
		return nil, err
	}
	return next, nil
}

package types

import (
	"encoding/json"
	"fmt"
)

// Many2One is an (id, display name) reference. The zero value is the empty reference.
type Many2One struct {
	ID   int64
	Name string
}

// Ref builds a reference without a display name.
func Ref(id int64) Many2One {
	return Many2One{ID: id}
}

// IsSet reports whether the reference points at a record.
func (m Many2One) IsSet() bool {
	return m.ID != 0
}

// MarshalJSON encodes the pair as [id, "name"], or false when empty.
func (m Many2One) MarshalJSON() ([]byte, error) {
	if !m.IsSet() {
		return []byte("false"), nil
	}
	return json.Marshal([]any{m.ID, m.Name})
}

// UnmarshalJSON accepts false/null, a bare id, or an [id, "name"] pair.
func (m *Many2One) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "false", "null":
		*m = Many2One{}
		return nil
	}
	var id int64
	if err := json.Unmarshal(data, &id); err == nil {
		*m = Many2One{ID: id}
		return nil
	}
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decode many2one: %w", err)
	}
	if len(pair) == 0 {
		*m = Many2One{}
		return nil
	}
	if err := json.Unmarshal(pair[0], &id); err != nil {
		return fmt.Errorf("decode many2one id: %w", err)
	}
	var name string
	if len(pair) > 1 {
		if err := json.Unmarshal(pair[1], &name); err != nil {
			return fmt.Errorf("decode many2one name: %w", err)
		}
	}
	*m = Many2One{ID: id, Name: name}
	return nil
}

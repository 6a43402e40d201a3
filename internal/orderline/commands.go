package orderline

import (
	"fmt"

	"github.com/angelmondragon/purchase-configurator/pkg/enums"
)

// CustomValue is free text attached to an attribute value that accepts user input.
type CustomValue struct {
	AttributeValueID int64  `json:"custom_product_template_attribute_value_id" validate:"required,gt=0"`
	CustomText       string `json:"custom_value"`
}

// Command is one entry of an x2many command sequence. Update patches and creation
// contexts share this vocabulary.
type Command struct {
	Operation enums.CommandOperation `json:"operation"`
	IDs       []int64                `json:"ids,omitempty"`
	Values    *CustomValue           `json:"values,omitempty"`
}

// DeleteAll drops every record of the collection.
func DeleteAll() Command {
	return Command{Operation: enums.CommandOperationDeleteAll}
}

// Create appends a new custom value record.
func Create(value CustomValue) Command {
	v := value
	return Command{Operation: enums.CommandOperationCreate, Values: &v}
}

// LinkMany links existing records by id.
func LinkMany(ids ...int64) Command {
	return Command{Operation: enums.CommandOperationLink, IDs: append([]int64(nil), ids...)}
}

func applyCustomCommands(current []CustomValue, cmds []Command) ([]CustomValue, error) {
	out := append([]CustomValue(nil), current...)
	for i, cmd := range cmds {
		switch cmd.Operation {
		case enums.CommandOperationDeleteAll:
			out = out[:0]
		case enums.CommandOperationCreate:
			if cmd.Values == nil {
				return nil, fmt.Errorf("custom value command %d: create without values", i)
			}
			if cmd.Values.AttributeValueID <= 0 {
				return nil, fmt.Errorf("custom value command %d: attribute value id required", i)
			}
			out = append(out, *cmd.Values)
		default:
			return nil, fmt.Errorf("custom value command %d: unsupported operation %q", i, cmd.Operation)
		}
	}
	return out, nil
}

func applyLinkCommands(current []int64, cmds []Command) ([]int64, error) {
	out := append([]int64(nil), current...)
	for i, cmd := range cmds {
		switch cmd.Operation {
		case enums.CommandOperationDeleteAll:
			out = out[:0]
		case enums.CommandOperationLink:
			for _, id := range cmd.IDs {
				if id <= 0 {
					return nil, fmt.Errorf("link command %d: invalid id %d", i, id)
				}
				if !containsID(out, id) {
					out = append(out, id)
				}
			}
		default:
			return nil, fmt.Errorf("link command %d: unsupported operation %q", i, cmd.Operation)
		}
	}
	return out, nil
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

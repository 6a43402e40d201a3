package orderline

import (
	"fmt"
	"sort"

	"github.com/angelmondragon/purchase-configurator/pkg/enums"
	"github.com/angelmondragon/purchase-configurator/pkg/types"
	"github.com/shopspring/decimal"
)

const (
	FieldProductTemplate = "product_template_id"
	FieldProduct         = "product_id"
	FieldProductQty      = "product_qty"
	FieldVariantValues   = "product_template_attribute_value_ids"
	FieldNoVariantValues = "product_no_variant_attribute_value_ids"
	FieldCustomValues    = "product_custom_attribute_value_ids"
)

// DefaultQty is the quantity of an empty line.
var DefaultQty = decimal.NewFromInt(1)

// Line is a purchase order line as seen by the configurator. Values returned by Order
// are snapshots; mutations go through Order.
type Line struct {
	ID                         int64            `json:"id"`
	ProductTemplate            types.Many2One   `json:"product_template_id"`
	Product                    types.Many2One   `json:"product_id"`
	ProductQty                 decimal.Decimal  `json:"product_qty"`
	VariantAttributeValueIDs   []int64          `json:"product_template_attribute_value_ids"`
	NoVariantAttributeValueIDs []int64          `json:"product_no_variant_attribute_value_ids"`
	CustomAttributeValues      []CustomValue    `json:"product_custom_attribute_value_ids"`
	IsConfigurable             bool             `json:"is_configurable_product"`
	ConfigMode                 enums.ConfigMode `json:"product_config_mode"`
	EntryMode                  enums.EntryMode  `json:"entry_mode"`
	// Placeholder marks a line added only to launch a configuration flow.
	Placeholder bool `json:"placeholder"`

	isNew bool
	dirty map[string]bool
}

// AttributeValueIDs returns the sorted union of no-variant and variant value ids.
func (l Line) AttributeValueIDs() []int64 {
	ids := make([]int64, 0, len(l.NoVariantAttributeValueIDs)+len(l.VariantAttributeValueIDs))
	ids = append(ids, l.NoVariantAttributeValueIDs...)
	ids = append(ids, l.VariantAttributeValueIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// IsDirty reports whether the field was explicitly written since the line was added.
func (l Line) IsDirty(field string) bool {
	return l.dirty[field]
}

func (l Line) clone() Line {
	out := l
	out.VariantAttributeValueIDs = append([]int64(nil), l.VariantAttributeValueIDs...)
	out.NoVariantAttributeValueIDs = append([]int64(nil), l.NoVariantAttributeValueIDs...)
	out.CustomAttributeValues = append([]CustomValue(nil), l.CustomAttributeValues...)
	out.dirty = make(map[string]bool, len(l.dirty))
	for k, v := range l.dirty {
		out.dirty[k] = v
	}
	return out
}

func (l *Line) markDirty(fields ...string) {
	if l.dirty == nil {
		l.dirty = map[string]bool{}
	}
	for _, f := range fields {
		l.dirty[f] = true
	}
}

// Patch is a set of field writes applied to a line as one unit. Nil pointers and nil
// slices leave the field untouched.
type Patch struct {
	ProductTemplate *types.Many2One
	Product         *types.Many2One
	ProductQty      *decimal.Decimal
	// VariantAttributeValueIDs replaces the recorded variant values when non-nil.
	VariantAttributeValueIDs   []int64
	CustomAttributeValues      []Command
	NoVariantAttributeValueIDs []Command
}

// apply returns the patched copy of l. l itself is never modified, so a failing
// command leaves the line as it was.
func (p Patch) apply(l Line) (Line, error) {
	next := l.clone()

	if p.ProductTemplate != nil {
		if p.ProductTemplate.ID != next.ProductTemplate.ID && p.Product == nil {
			next.Product = types.Many2One{}
			next.VariantAttributeValueIDs = nil
			next.markDirty(FieldProduct, FieldVariantValues)
		}
		next.ProductTemplate = *p.ProductTemplate
		next.markDirty(FieldProductTemplate)
	}
	if p.Product != nil {
		if p.Product.ID != next.Product.ID && p.VariantAttributeValueIDs == nil {
			next.VariantAttributeValueIDs = nil
			next.markDirty(FieldVariantValues)
		}
		next.Product = *p.Product
		next.markDirty(FieldProduct)
	}
	if p.VariantAttributeValueIDs != nil {
		next.VariantAttributeValueIDs = append([]int64(nil), p.VariantAttributeValueIDs...)
		next.markDirty(FieldVariantValues)
	}
	if p.ProductQty != nil {
		if p.ProductQty.IsNegative() {
			return l, fmt.Errorf("product quantity cannot be negative")
		}
		next.ProductQty = *p.ProductQty
		next.markDirty(FieldProductQty)
	}
	if p.CustomAttributeValues != nil {
		values, err := applyCustomCommands(next.CustomAttributeValues, p.CustomAttributeValues)
		if err != nil {
			return l, err
		}
		next.CustomAttributeValues = values
		next.markDirty(FieldCustomValues)
	}
	if p.NoVariantAttributeValueIDs != nil {
		ids, err := applyLinkCommands(next.NoVariantAttributeValueIDs, p.NoVariantAttributeValueIDs)
		if err != nil {
			return l, err
		}
		next.NoVariantAttributeValueIDs = ids
		next.markDirty(FieldNoVariantValues)
	}
	return next, nil
}

// CreationContext seeds a new line. Attribute collections use the Command vocabulary.
type CreationContext struct {
	DefaultProductID                  int64           `json:"default_product_id"`
	DefaultProductTemplateID          int64           `json:"default_product_template_id"`
	DefaultProductQty                 decimal.Decimal `json:"default_product_qty"`
	DefaultNoVariantAttributeValueIDs []Command       `json:"default_product_no_variant_attribute_value_ids"`
	DefaultCustomAttributeValueIDs    []Command       `json:"default_product_custom_attribute_value_ids"`
}

func newLineFromContext(id int64, cctx CreationContext, mode enums.EntryMode) (Line, error) {
	line := Line{
		ID:              id,
		ProductTemplate: types.Ref(cctx.DefaultProductTemplateID),
		Product:         types.Ref(cctx.DefaultProductID),
		ProductQty:      cctx.DefaultProductQty,
		EntryMode:       mode,
		isNew:           true,
	}
	if line.ProductQty.IsZero() {
		line.ProductQty = DefaultQty
	}
	noVariant, err := applyLinkCommands(nil, cctx.DefaultNoVariantAttributeValueIDs)
	if err != nil {
		return Line{}, err
	}
	custom, err := applyCustomCommands(nil, cctx.DefaultCustomAttributeValueIDs)
	if err != nil {
		return Line{}, err
	}
	line.NoVariantAttributeValueIDs = noVariant
	line.CustomAttributeValues = custom
	return line, nil
}

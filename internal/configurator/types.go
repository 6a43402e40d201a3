package configurator

import (
	"github.com/angelmondragon/purchase-configurator/internal/orderline"
	pkgerrors "github.com/angelmondragon/purchase-configurator/pkg/errors"
	"github.com/shopspring/decimal"
)

// RequestContext is the free-form context forwarded to every backend call (lang, tz, company...).
type RequestContext map[string]any

// NoVariantValue is an attribute value recorded on the line without selecting a variant.
type NoVariantValue struct {
	AttributeValueID int64  `json:"custom_product_template_attribute_value_id"`
	AttributeName    string `json:"attribute_name"`
	ValueName        string `json:"attribute_value_name"`
	Value            int64  `json:"value" validate:"gt=0"`
	IsCustom         bool   `json:"is_custom"`
}

// RootProduct is the snapshot a dialog is seeded with. It lives as long as the dialog.
type RootProduct struct {
	ProductID                int64                   `json:"product_id" validate:"gt=0"`
	ProductTemplateID        int64                   `json:"product_template_id" validate:"gt=0"`
	Quantity                 decimal.Decimal         `json:"quantity"`
	VariantValues            []int64                 `json:"variant_values"`
	CustomAttributeValues    []orderline.CustomValue `json:"product_custom_attribute_values" validate:"dive"`
	NoVariantAttributeValues []NoVariantValue        `json:"no_variant_attribute_values" validate:"dive"`
}

// SelectedProduct is one product picked in the dialog.
type SelectedProduct = RootProduct

// ConfiguratorResult is what a confirmed dialog returns: the main product first, then
// the optional products in display order.
type ConfiguratorResult []SelectedProduct

// Split separates the main product from the optional ones.
func (r ConfiguratorResult) Split() (SelectedProduct, []SelectedProduct, error) {
	if len(r) == 0 {
		return SelectedProduct{}, nil, pkgerrors.New(pkgerrors.CodeValidation, "configurator returned no product")
	}
	return r[0], r[1:], nil
}

// VariantResolution is the outcome of resolving a template.
type VariantResolution struct {
	ProductID           int64
	ProductName         string
	HasOptionalProducts bool
	// Mode is only meaningful when no product was determined.
	Mode string
}

// Determined reports whether a single variant was found.
func (v VariantResolution) Determined() bool {
	return v.ProductID != 0
}

// Labels are the localized texts shown on the dialog.
type Labels struct {
	Confirm string
	Back    string
	Title   string
}

// DefaultLabels returns the English dialog texts.
func DefaultLabels() Labels {
	return Labels{Confirm: "Confirm", Back: "Back", Title: "Configure"}
}

func (l Labels) withDefaults() Labels {
	def := DefaultLabels()
	if l.Confirm == "" {
		l.Confirm = def.Confirm
	}
	if l.Back == "" {
		l.Back = def.Back
	}
	if l.Title == "" {
		l.Title = def.Title
	}
	return l
}

package markup

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/angelmondragon/purchase-configurator/internal/configurator"
	"github.com/shopspring/decimal"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	classVariantChange  = "js_variant_change"
	classNoVariant      = "no_variant"
	classUnchangedIDs   = "oe_unchanged_value_ids"
	attrUnchangedIDs    = "data-unchanged_value_ids"
	fieldProductID      = "product_id"
	fieldAddQty         = "add_qty"
	defaultFormQuantity = 1
)

// Form is a parsed configuration fragment.
type Form struct {
	nodes []*html.Node
}

// Parse reads a rendered configuration fragment.
func Parse(markup string) (*Form, error) {
	if strings.TrimSpace(markup) == "" {
		return nil, fmt.Errorf("configuration markup is empty")
	}
	parent := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(markup), parent)
	if err != nil {
		return nil, fmt.Errorf("parse configuration markup: %w", err)
	}
	return &Form{nodes: nodes}, nil
}

// ProductID is the candidate variant: the hidden product input, or the checked radio.
// Zero when the form does not name one.
func (f *Form) ProductID() int64 {
	inputs := f.productInputs()
	if len(inputs) == 0 {
		return 0
	}
	id, err := strconv.ParseInt(strings.TrimSpace(attr(inputs[0], "value")), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// SetProductID writes id into every product input the form exposes.
func (f *Form) SetProductID(id int64) {
	for _, n := range f.productInputs() {
		setAttr(n, "value", strconv.FormatInt(id, 10))
	}
}

// VariantValues returns the selected attribute value ids followed by the values the
// form marks as unchanged.
func (f *Form) VariantValues() []int64 {
	var values []int64
	var unchanged []int64
	f.walk(func(n *html.Node) {
		switch {
		case isCheckedVariantInput(n):
			if id, ok := parseID(attr(n, "value")); ok {
				values = append(values, id)
			}
		case isVariantSelect(n):
			if opt := selectedOption(n); opt != nil {
				if id, ok := parseID(optionValue(opt)); ok {
					values = append(values, id)
				}
			}
		case n.DataAtom == atom.Div && hasClass(n, classUnchangedIDs):
			var ids []int64
			if err := json.Unmarshal([]byte(attr(n, attrUnchangedIDs)), &ids); err == nil {
				unchanged = append(unchanged, ids...)
			}
		}
	})
	return append(values, unchanged...)
}

// NoVariantValues returns the selected values of attributes that do not create variants.
func (f *Form) NoVariantValues() []configurator.NoVariantValue {
	var out []configurator.NoVariantValue
	f.walk(func(n *html.Node) {
		var source *html.Node
		var raw string
		switch {
		case isCheckedVariantInput(n) && hasClass(n, classNoVariant):
			source, raw = n, attr(n, "value")
		case isVariantSelect(n) && hasClass(n, classNoVariant):
			if opt := selectedOption(n); opt != nil {
				source, raw = opt, optionValue(opt)
			}
		default:
			return
		}
		if source == nil {
			return
		}
		value, ok := parseID(raw)
		if !ok {
			return
		}
		valueID, _ := parseID(attr(source, "data-value_id"))
		out = append(out, configurator.NoVariantValue{
			AttributeValueID: valueID,
			AttributeName:    attr(source, "data-attribute_name"),
			ValueName:        attr(source, "data-value_name"),
			Value:            value,
			IsCustom:         isTruthy(attr(source, "data-is_custom")),
		})
	})
	return out
}

// Quantity is the add_qty input, 1 when missing or unreadable.
func (f *Form) Quantity() decimal.Decimal {
	var qty decimal.Decimal
	found := false
	f.walk(func(n *html.Node) {
		if found || n.DataAtom != atom.Input || attr(n, "name") != fieldAddQty {
			return
		}
		if v, err := decimal.NewFromString(strings.TrimSpace(attr(n, "value"))); err == nil && v.IsPositive() {
			qty = v
			found = true
		}
	})
	if !found {
		return decimal.NewFromInt(defaultFormQuantity)
	}
	return qty
}

// Render serializes the fragment, including any product id written back.
func (f *Form) Render() (string, error) {
	var b strings.Builder
	for _, n := range f.nodes {
		if err := html.Render(&b, n); err != nil {
			return "", fmt.Errorf("render configuration markup: %w", err)
		}
	}
	return b.String(), nil
}

func (f *Form) productInputs() []*html.Node {
	var hidden, checked []*html.Node
	f.walk(func(n *html.Node) {
		if n.DataAtom != atom.Input || attr(n, "name") != fieldProductID {
			return
		}
		switch strings.ToLower(attr(n, "type")) {
		case "hidden":
			hidden = append(hidden, n)
		case "radio":
			if hasAttr(n, "checked") {
				checked = append(checked, n)
			}
		}
	})
	return append(hidden, checked...)
}

func (f *Form) walk(visit func(*html.Node)) {
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.ElementNode {
			visit(n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	for _, n := range f.nodes {
		rec(n)
	}
}

// Extractor parses markup for the configurator.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(markup string) (configurator.ConfigurationForm, error) {
	form, err := Parse(markup)
	if err != nil {
		return nil, err
	}
	return form, nil
}

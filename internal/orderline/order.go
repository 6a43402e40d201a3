package orderline

import (
	"context"
	"fmt"
	"sync"

	"github.com/angelmondragon/purchase-configurator/pkg/enums"
	pkgerrors "github.com/angelmondragon/purchase-configurator/pkg/errors"
	"github.com/angelmondragon/purchase-configurator/pkg/types"
	"github.com/shopspring/decimal"
)

// Order owns an ordered collection of lines. Every read and write goes through its
// mutex, so concurrent configurator sessions on the same order apply one at a time.
type Order struct {
	mu          sync.Mutex
	id          int64
	pricelistID int64
	lines       []*Line
	selected    int64
	nextLineID  int64
}

// NewOrder builds an empty order.
func NewOrder(id, pricelistID int64) *Order {
	return &Order{id: id, pricelistID: pricelistID}
}

func (o *Order) ID() int64 {
	return o.id
}

func (o *Order) PricelistID() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pricelistID
}

// Line returns a snapshot of the line.
func (o *Order) Line(lineID int64) (Line, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	line, _, err := o.find(lineID)
	if err != nil {
		return Line{}, err
	}
	return line.clone(), nil
}

// Lines returns snapshots of every line in display order.
func (o *Order) Lines() []Line {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Line, 0, len(o.lines))
	for _, line := range o.lines {
		out = append(out, line.clone())
	}
	return out
}

// AppendLine stores seed at the bottom of the order with a fresh id and selects it.
func (o *Order) AppendLine(seed Line) Line {
	o.mu.Lock()
	defer o.mu.Unlock()
	line := seed.clone()
	o.nextLineID++
	line.ID = o.nextLineID
	if line.ProductQty.IsZero() {
		line.ProductQty = DefaultQty
	}
	if line.ConfigMode == "" {
		line.ConfigMode = enums.ConfigModeNone
	}
	if line.EntryMode == "" {
		line.EntryMode = enums.EntryModeEdit
	}
	o.lines = append(o.lines, &line)
	o.selected = line.ID
	return line.clone()
}

// Update applies patch to the line atomically.
func (o *Order) Update(ctx context.Context, lineID int64, patch Patch) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	line, idx, err := o.find(lineID)
	if err != nil {
		return err
	}
	next, err := patch.apply(*line)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "apply line patch")
	}
	o.lines[idx] = &next
	return nil
}

// ChangeTemplate writes the template together with its configurability flags, the way
// picking a template on the line does.
func (o *Order) ChangeTemplate(ctx context.Context, lineID int64, template types.Many2One, configurable bool, mode enums.ConfigMode) error {
	if mode == "" {
		mode = enums.ConfigModeNone
	}
	if !mode.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown config mode %q", mode))
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	line, idx, err := o.find(lineID)
	if err != nil {
		return err
	}
	next, err := Patch{ProductTemplate: &template}.apply(*line)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "apply line patch")
	}
	next.IsConfigurable = configurable && template.IsSet()
	next.ConfigMode = mode
	if !template.IsSet() {
		next.ConfigMode = enums.ConfigModeNone
	}
	o.lines[idx] = &next
	return nil
}

// AddNew inserts a line seeded from cctx. Defaults seeded this way are not dirty.
func (o *Order) AddNew(ctx context.Context, position enums.LinePosition, cctx CreationContext, mode enums.EntryMode) (Line, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !position.IsValid() {
		return Line{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown line position %q", position))
	}
	if !mode.IsValid() {
		return Line{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown entry mode %q", mode))
	}
	line, err := newLineFromContext(o.nextLineID+1, cctx, mode)
	if err != nil {
		return Line{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "seed line from creation context")
	}
	o.nextLineID++
	line.ConfigMode = enums.ConfigModeNone
	if position == enums.LinePositionTop {
		o.lines = append([]*Line{&line}, o.lines...)
	} else {
		o.lines = append(o.lines, &line)
	}
	return line.clone(), nil
}

// ForceQty writes the quantity and marks it dirty so the line survives leaving it.
func (o *Order) ForceQty(lineID int64, qty decimal.Decimal) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	line, _, err := o.find(lineID)
	if err != nil {
		return err
	}
	if qty.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "product quantity cannot be negative")
	}
	line.ProductQty = qty
	line.markDirty(FieldProductQty)
	return nil
}

// RemoveRecord deletes the line from the order.
func (o *Order) RemoveRecord(lineID int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, idx, err := o.find(lineID)
	if err != nil {
		return err
	}
	o.lines = append(o.lines[:idx], o.lines[idx+1:]...)
	if o.selected == lineID {
		o.selected = 0
	}
	return nil
}

// SelectRecord moves the selection to lineID. Leaving a new line that was never
// written to drops it, the way an untouched row disappears on blur.
func (o *Order) SelectRecord(lineID int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, _, err := o.find(lineID); err != nil {
		return err
	}
	o.leaveSelected()
	o.selected = lineID
	return nil
}

// UnselectRecord leaves the current line.
func (o *Order) UnselectRecord() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.leaveSelected()
	o.selected = 0
}

// Selected returns the selected line id, if any.
func (o *Order) Selected() (int64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.selected, o.selected != 0
}

func (o *Order) leaveSelected() {
	if o.selected == 0 {
		return
	}
	line, idx, err := o.find(o.selected)
	if err != nil {
		return
	}
	if line.isNew && len(line.dirty) == 0 && line.EntryMode == enums.EntryModeEdit {
		o.lines = append(o.lines[:idx], o.lines[idx+1:]...)
	}
}

func (o *Order) find(lineID int64) (*Line, int, error) {
	for idx, line := range o.lines {
		if line.ID == lineID {
			return line, idx, nil
		}
	}
	return nil, -1, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("order line %d not found", lineID))
}

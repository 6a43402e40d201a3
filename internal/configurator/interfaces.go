package configurator

import (
	"context"
	"encoding/json"

	"github.com/angelmondragon/purchase-configurator/internal/orderline"
	"github.com/angelmondragon/purchase-configurator/pkg/enums"
	"github.com/angelmondragon/purchase-configurator/pkg/types"
	"github.com/shopspring/decimal"
)

// OrderRecord is the record API of the order being edited.
type OrderRecord interface {
	ID() int64
	PricelistID() int64
	Line(lineID int64) (orderline.Line, error)
	Lines() []orderline.Line
	Update(ctx context.Context, lineID int64, patch orderline.Patch) error
	AddNew(ctx context.Context, position enums.LinePosition, cctx orderline.CreationContext, mode enums.EntryMode) (orderline.Line, error)
	ForceQty(lineID int64, qty decimal.Decimal) error
	RemoveRecord(lineID int64) error
	UnselectRecord()
}

// SingleVariantResponse is the raw answer of the single-variant endpoint.
type SingleVariantResponse struct {
	ProductID           int64  `json:"product_id"`
	ProductName         string `json:"product_name"`
	HasOptionalProducts bool   `json:"has_optional_products"`
	Mode                string `json:"mode"`
}

// VariantEndpoint resolves a template to a single variant when possible.
type VariantEndpoint interface {
	SingleProductVariant(ctx context.Context, templateID int64, reqCtx RequestContext) (SingleVariantResponse, error)
}

// ConfigureRequest asks the backend to render the configuration form.
type ConfigureRequest struct {
	ProductTemplateID int64           `json:"product_template_id"`
	Quantity          decimal.Decimal `json:"quantity"`
	PricelistID       int64           `json:"pricelist_id"`
	VariantValueIDs   []int64         `json:"product_template_attribute_value_ids"`
	NoVariantValueIDs []int64         `json:"product_no_variant_attribute_value_ids"`
	Context           RequestContext  `json:"context"`
}

// ConfigureEndpoint returns the rendered configuration markup.
type ConfigureEndpoint interface {
	Configure(ctx context.Context, req ConfigureRequest) (string, error)
}

// NameResolver looks up display names of products.
type NameResolver interface {
	NameGet(ctx context.Context, productIDs []int64, reqCtx RequestContext) ([]types.Many2One, error)
}

// VariantCreator creates (or finds) the variant matching a combination.
type VariantCreator interface {
	CreateProductVariant(ctx context.Context, templateID int64, combination []int64) (int64, error)
}

// SelectRequest describes the product picked in a rendered form.
type SelectRequest struct {
	CandidateID int64
	TemplateID  int64
	Combination []int64
}

// ProductSelector turns a candidate from the form into a concrete variant id.
type ProductSelector interface {
	SelectOrCreate(ctx context.Context, req SelectRequest) (int64, error)
}

// ConfigurationForm is the parsed configuration markup.
type ConfigurationForm interface {
	ProductID() int64
	SetProductID(id int64)
	VariantValues() []int64
	NoVariantValues() []NoVariantValue
	Quantity() decimal.Decimal
	Render() (string, error)
}

// MarkupExtractor parses configuration markup.
type MarkupExtractor interface {
	Extract(markup string) (ConfigurationForm, error)
}

// ModalSignal is what a dialog reports back.
type ModalSignal string

const (
	SignalOpened  ModalSignal = "opened"
	SignalConfirm ModalSignal = "confirm"
	SignalClosed  ModalSignal = "closed"
)

// ModalEvent carries one signal from the dialog.
type ModalEvent struct {
	Signal ModalSignal
}

// ModalOptions configure a dialog instance.
type ModalOptions struct {
	SessionID        string
	OrderID          int64
	LineID           int64
	RootProduct      RootProduct
	PricelistID      int64
	OKButtonText     string
	CancelButtonText string
	Title            string
	Context          RequestContext
	Mode             enums.ConfiguratorMode
	Markup           string
}

// Modal is a configuration dialog. Events must be buffered by the implementation so
// that signals emitted before anyone listens are not lost.
type Modal interface {
	Element() string
	Events() <-chan ModalEvent
	Open(ctx context.Context) error
	// SelectedProducts materializes the confirmed selection, creating variants as needed.
	SelectedProducts(ctx context.Context) (ConfiguratorResult, error)
}

// ModalFactory builds dialogs.
type ModalFactory interface {
	NewModal(ctx context.Context, opts ModalOptions) (Modal, error)
}

// FocusTrap confines input focus to an element while a dialog is up.
type FocusTrap interface {
	Activate(element string)
	Deactivate(element string)
}

// GridRequest carries everything the grid surface needs. Nothing is read from shared
// order state.
type GridRequest struct {
	OrderID                int64                  `json:"order_id"`
	LineID                 int64                  `json:"line_id"`
	TemplateID             int64                  `json:"product_template_id"`
	PricelistID            int64                  `json:"pricelist_id"`
	Mode                   enums.ConfiguratorMode `json:"mode"`
	FocusAttributeValueIDs []int64                `json:"focus_attribute_value_ids"`
}

// GridSurface fetches and shows the matrix configurator.
type GridSurface interface {
	Fetch(ctx context.Context, req GridRequest) (json.RawMessage, error)
	Open(ctx context.Context, req GridRequest, grid json.RawMessage) error
}

// LineLock is held while a dialog edits a line. Refresh extends an expiring lock and
// fails with a conflict error once the lock was lost.
type LineLock interface {
	Refresh(ctx context.Context) error
	Release(ctx context.Context) error
}

// LineLocker hands out line locks. Lock fails with a conflict error when the line is
// already held.
type LineLocker interface {
	Lock(ctx context.Context, orderID, lineID int64) (LineLock, error)
}

// ErrorReporter surfaces failures that happen after the caller got its answer.
type ErrorReporter interface {
	Report(ctx context.Context, err error)
}

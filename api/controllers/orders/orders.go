package orders

import (
	"context"
	"fmt"
	"net/http"

	"github.com/angelmondragon/purchase-configurator/api/responses"
	"github.com/angelmondragon/purchase-configurator/api/validators"
	"github.com/angelmondragon/purchase-configurator/internal/configurator"
	"github.com/angelmondragon/purchase-configurator/internal/orderline"
	"github.com/angelmondragon/purchase-configurator/internal/sessions"
	"github.com/angelmondragon/purchase-configurator/pkg/enums"
	pkgerrors "github.com/angelmondragon/purchase-configurator/pkg/errors"
	"github.com/angelmondragon/purchase-configurator/pkg/logger"
	"github.com/angelmondragon/purchase-configurator/pkg/types"
)

// Store is the order storage the handlers read and write.
type Store interface {
	Create(pricelistID int64) *orderline.Order
	Get(id int64) (*orderline.Order, error)
}

// Grids exposes the last grid opened per order.
type Grids interface {
	LastGrid(orderID int64) (sessions.GridView, bool)
}

// LineGuard serializes direct line edits with an open configurator on the same line.
type LineGuard interface {
	Guard(ctx context.Context, order configurator.OrderRecord, lineID int64, fn func() error) error
}

type createOrderRequest struct {
	PricelistID int64 `json:"pricelist_id" validate:"gte=0"`
}

type addLineRequest struct {
	Placeholder bool `json:"placeholder"`
}

type templateRequest struct {
	ProductTemplateID   int64  `json:"product_template_id" validate:"gte=0"`
	ProductTemplateName string `json:"product_template_name" validate:"max=256"`
	IsConfigurable      bool   `json:"is_configurable_product"`
	ConfigMode          string `json:"product_config_mode" validate:"omitempty,oneof=none configurator matrix"`
}

// OrderView is the order as returned to the UI.
type OrderView struct {
	ID             int64            `json:"id"`
	PricelistID    int64            `json:"pricelist_id"`
	SelectedLineID int64            `json:"selected_line_id,omitempty"`
	Lines          []orderline.Line `json:"lines"`
}

// LineResult is the outcome of a line action. SessionID is set when a dialog opened.
type LineResult struct {
	Order     OrderView `json:"order"`
	SessionID string    `json:"session_id,omitempty"`
}

func newOrderView(order *orderline.Order) OrderView {
	selected, _ := order.Selected()
	lines := order.Lines()
	if lines == nil {
		lines = []orderline.Line{}
	}
	return OrderView{
		ID:             order.ID(),
		PricelistID:    order.PricelistID(),
		SelectedLineID: selected,
		Lines:          lines,
	}
}

func newLineResult(order *orderline.Order, session *configurator.Session) LineResult {
	result := LineResult{Order: newOrderView(order)}
	if session != nil {
		result.SessionID = session.ID()
	}
	return result
}

// Create opens a new empty purchase order.
func Create(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order := store.Create(req.PricelistID)
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderView(order))
	}
}

// Detail returns the order with its lines.
func Detail(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := loadOrder(r, store)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderView(order))
	}
}

// AddLine appends an empty line, optionally flagged as a configuration launcher. The
// body may be omitted.
func AddLine(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := loadOrder(r, store)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req addLineRequest
		if err := validators.DecodeOptionalJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order.AppendLine(orderline.Line{Placeholder: req.Placeholder})
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderView(order))
	}
}

// SetTemplate writes the picked template on the line and runs the template change flow,
// which may open the configurator or the grid. A line held by an open dialog is left
// as it is and answered with a conflict.
func SetTemplate(store Store, editor configurator.LineEditor, guard LineGuard, logg *logger.Logger) http.HandlerFunc {
	if logg == nil {
		logg = logger.Nop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		order, lineID, err := loadLine(r, store)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req templateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithLineID(logg.WithOrderID(r.Context(), order.ID()), lineID)
		template := types.Many2One{ID: req.ProductTemplateID, Name: req.ProductTemplateName}
		mode := enums.ConfigMode(req.ConfigMode)
		err = guard.Guard(ctx, order, lineID, func() error {
			return order.ChangeTemplate(ctx, lineID, template, req.IsConfigurable, mode)
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		session, err := editor.OnProductTemplateUpdate(ctx, order, lineID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newLineResult(order, session))
	}
}

// Configure reopens the configuration of a line.
func Configure(store Store, editor configurator.LineEditor, logg *logger.Logger) http.HandlerFunc {
	if logg == nil {
		logg = logger.Nop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		order, lineID, err := loadLine(r, store)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithLineID(logg.WithOrderID(r.Context(), order.ID()), lineID)

		line, err := order.Line(lineID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if !editor.IsConfigurableTemplate(line) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("order line %d has no configurable template", lineID)))
			return
		}

		session, err := editor.EditConfiguration(ctx, order, lineID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newLineResult(order, session))
	}
}

// Grid returns the last grid opened for the order.
func Grid(store Store, grids Grids, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := loadOrder(r, store)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, ok := grids.LastGrid(order.ID())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no grid opened for order %d", order.ID())))
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func loadOrder(r *http.Request, store Store) (*orderline.Order, error) {
	orderID, err := validators.ParsePathID(r, "orderId")
	if err != nil {
		return nil, err
	}
	return store.Get(orderID)
}

func loadLine(r *http.Request, store Store) (*orderline.Order, int64, error) {
	order, err := loadOrder(r, store)
	if err != nil {
		return nil, 0, err
	}
	lineID, err := validators.ParsePathID(r, "lineId")
	if err != nil {
		return nil, 0, err
	}
	if _, err := order.Line(lineID); err != nil {
		return nil, 0, err
	}
	return order, lineID, nil
}

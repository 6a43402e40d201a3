package sessions

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/purchase-configurator/api/responses"
	"github.com/angelmondragon/purchase-configurator/api/validators"
	"github.com/angelmondragon/purchase-configurator/internal/configurator"
	"github.com/angelmondragon/purchase-configurator/internal/orderline"
	internalsessions "github.com/angelmondragon/purchase-configurator/internal/sessions"
	"github.com/angelmondragon/purchase-configurator/pkg/enums"
	"github.com/angelmondragon/purchase-configurator/pkg/logger"
	"github.com/angelmondragon/purchase-configurator/pkg/types"
)

// Dialogs is the browser-facing side of open configurator dialogs.
type Dialogs interface {
	View(sessionID string) (internalsessions.View, error)
	Opened(ctx context.Context, sessionID string) error
	Confirm(ctx context.Context, sessionID string, products configurator.ConfiguratorResult) error
	Close(ctx context.Context, sessionID string) error
}

// Tracker looks up the session state machines.
type Tracker interface {
	Session(id string) (*configurator.Session, bool)
}

type confirmedProduct struct {
	ProductID                int64                         `json:"product_id" validate:"gte=0"`
	ProductTemplateID        int64                         `json:"product_template_id" validate:"gt=0"`
	Quantity                 decimal.Decimal               `json:"quantity" validate:"gte=0"`
	VariantValues            []int64                       `json:"variant_values"`
	CustomAttributeValues    []orderline.CustomValue       `json:"product_custom_attribute_values" validate:"dive"`
	NoVariantAttributeValues []configurator.NoVariantValue `json:"no_variant_attribute_values" validate:"dive"`
}

type confirmRequest struct {
	Products []confirmedProduct `json:"products" validate:"required,min=1,dive"`
}

// DetailView is a dialog with the state of its session.
type DetailView struct {
	Dialog internalsessions.View `json:"dialog"`
	State  enums.DialogState     `json:"state"`
}

// Detail returns what the UI needs to render the dialog.
func Detail(dialogs Dialogs, tracker Tracker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathString(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := dialogs.View(id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		state := enums.DialogStateClosed
		if s, ok := tracker.Session(id); ok {
			state = s.State()
		}
		responses.WriteSuccess(w, DetailView{Dialog: view, State: state})
	}
}

// Opened acknowledges that the dialog is on screen.
func Opened(dialogs Dialogs, logg *logger.Logger) http.HandlerFunc {
	return signal(logg, func(ctx context.Context, id string, r *http.Request) error {
		return dialogs.Opened(ctx, id)
	})
}

// Confirm posts the selection, main product first.
func Confirm(dialogs Dialogs, logg *logger.Logger) http.HandlerFunc {
	return signal(logg, func(ctx context.Context, id string, r *http.Request) error {
		var req confirmRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return err
		}
		products := make(configurator.ConfiguratorResult, 0, len(req.Products))
		for _, p := range req.Products {
			products = append(products, configurator.SelectedProduct{
				ProductID:                p.ProductID,
				ProductTemplateID:        p.ProductTemplateID,
				Quantity:                 p.Quantity,
				VariantValues:            p.VariantValues,
				CustomAttributeValues:    p.CustomAttributeValues,
				NoVariantAttributeValues: p.NoVariantAttributeValues,
			})
		}
		return dialogs.Confirm(ctx, id, products)
	})
}

// Close dismisses the dialog.
func Close(dialogs Dialogs, logg *logger.Logger) http.HandlerFunc {
	return signal(logg, func(ctx context.Context, id string, r *http.Request) error {
		return dialogs.Close(ctx, id)
	})
}

func signal(logg *logger.Logger, fn func(ctx context.Context, id string, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathString(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := fn(r.Context(), id, r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, types.SignalAccepted{SessionID: id, Status: "accepted"})
	}
}

package configurator

import (
	"context"
	"fmt"

	"github.com/angelmondragon/purchase-configurator/internal/orderline"
	"github.com/angelmondragon/purchase-configurator/pkg/enums"
	"github.com/angelmondragon/purchase-configurator/pkg/logger"
	"github.com/angelmondragon/purchase-configurator/pkg/metrics"
	"github.com/angelmondragon/purchase-configurator/pkg/types"
	"github.com/shopspring/decimal"
)

// Confirmation is a confirmed result with every remote lookup already done. Applying
// it only touches the order.
type Confirmation struct {
	Main      SelectedProduct
	Patch     orderline.Patch
	Optionals []orderline.CreationContext
}

// ProductUpdateHook runs after the edited line received a new product.
type ProductUpdateHook func(ctx context.Context, order OrderRecord, lineID int64) error

// Reconciler applies dialog and grid outcomes to the order.
type Reconciler struct {
	names          NameResolver
	logg           *logger.Logger
	metrics        *metrics.ConfiguratorMetrics
	productUpdated ProductUpdateHook
}

func NewReconciler(names NameResolver, logg *logger.Logger, m *metrics.ConfiguratorMetrics) (*Reconciler, error) {
	if names == nil {
		return nil, fmt.Errorf("name resolver required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Reconciler{names: names, logg: logg, metrics: m}, nil
}

// OnProductUpdated installs the hook called after the main product lands on the line.
func (r *Reconciler) OnProductUpdated(hook ProductUpdateHook) {
	r.productUpdated = hook
}

// Prepare validates result and performs the name lookup for the main product.
func (r *Reconciler) Prepare(ctx context.Context, result ConfiguratorResult, reqCtx RequestContext) (Confirmation, error) {
	if err := ValidateSelection(result); err != nil {
		return Confirmation{}, err
	}
	main, optionals, err := result.Split()
	if err != nil {
		return Confirmation{}, err
	}
	patch, err := ToUpdateData(ctx, r.names, main, reqCtx)
	if err != nil {
		return Confirmation{}, err
	}
	return Confirmation{
		Main:      main,
		Patch:     patch,
		Optionals: ToLineCreationContexts(optionals),
	}, nil
}

// Apply writes a prepared confirmation: main line update, one bottom line per optional
// product, quantity reconciliation, then the main quantity.
func (r *Reconciler) Apply(ctx context.Context, order OrderRecord, lineID int64, c Confirmation) error {
	if err := order.Update(ctx, lineID, c.Patch); err != nil {
		return err
	}
	if r.productUpdated != nil {
		if err := r.productUpdated(ctx, order, lineID); err != nil {
			return err
		}
	}

	for _, cctx := range c.Optionals {
		line, err := order.AddNew(ctx, enums.LinePositionBottom, cctx, enums.EntryModeReadonly)
		if err != nil {
			return err
		}
		// A plain write on a freshly added line is not dirty and would be dropped.
		if err := order.ForceQty(line.ID, cctx.DefaultProductQty); err != nil {
			return err
		}
	}
	r.metrics.AddOptionalLines(len(c.Optionals))

	if len(c.Optionals) > 0 {
		for _, line := range order.Lines() {
			for _, cctx := range c.Optionals {
				if line.Product.ID == cctx.DefaultProductID {
					if err := order.ForceQty(line.ID, cctx.DefaultProductQty); err != nil {
						return err
					}
				}
			}
		}
	}

	order.UnselectRecord()
	if err := order.ForceQty(lineID, c.Main.Quantity); err != nil {
		return err
	}
	r.logg.Info(ctx, fmt.Sprintf("configuration applied with %d optional lines", len(c.Optionals)))
	return nil
}

// ApplyConfirmed prepares and applies result in one go.
func (r *Reconciler) ApplyConfirmed(ctx context.Context, order OrderRecord, lineID int64, result ConfiguratorResult, reqCtx RequestContext) error {
	c, err := r.Prepare(ctx, result, reqCtx)
	if err != nil {
		return err
	}
	return r.Apply(ctx, order, lineID, c)
}

// ApplyCancelled handles a dialog closed without confirmation. Lines opened for
// editing stay as they were; any other line is reset, and dropped when it only
// existed to launch the dialog.
func (r *Reconciler) ApplyCancelled(ctx context.Context, order OrderRecord, lineID int64, mode enums.ConfiguratorMode) error {
	if mode == enums.ConfiguratorModeEdit {
		return nil
	}
	line, err := order.Line(lineID)
	if err != nil {
		return err
	}
	empty := types.Many2One{}
	qty := orderline.DefaultQty
	patch := orderline.Patch{
		ProductTemplate:            &empty,
		Product:                    &empty,
		ProductQty:                 &qty,
		VariantAttributeValueIDs:   []int64{},
		CustomAttributeValues:      []orderline.Command{orderline.DeleteAll()},
		NoVariantAttributeValueIDs: []orderline.Command{orderline.DeleteAll()},
	}
	if err := order.Update(ctx, lineID, patch); err != nil {
		return err
	}
	r.logg.Info(ctx, "configuration abandoned, line reset")
	if line.Placeholder {
		return r.RemovePlaceholder(ctx, order, lineID)
	}
	return nil
}

// RemovePlaceholder drops a line that only existed to launch a configuration flow.
func (r *Reconciler) RemovePlaceholder(ctx context.Context, order OrderRecord, lineID int64) error {
	if err := order.RemoveRecord(lineID); err != nil {
		return err
	}
	r.logg.Info(ctx, "placeholder line removed")
	return nil
}

func quantityOrDefault(qty decimal.Decimal) decimal.Decimal {
	if qty.IsZero() {
		return orderline.DefaultQty
	}
	return qty
}

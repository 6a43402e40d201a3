package configurator

import (
	"context"
	"fmt"

	"github.com/angelmondragon/purchase-configurator/internal/orderline"
	"github.com/angelmondragon/purchase-configurator/pkg/enums"
	"github.com/angelmondragon/purchase-configurator/pkg/logger"
	"github.com/angelmondragon/purchase-configurator/pkg/types"
)

// LineEditor is the product field behaviour of a purchase line. Operations that open a
// dialog return its session; nil means nothing was opened.
type LineEditor interface {
	OnProductTemplateUpdate(ctx context.Context, order OrderRecord, lineID int64) (*Session, error)
	OnProductUpdate(ctx context.Context, order OrderRecord, lineID int64) error
	EditConfiguration(ctx context.Context, order OrderRecord, lineID int64) (*Session, error)
	IsConfigurableTemplate(line orderline.Line) bool
}

// BaseEditor only knows about the matrix.
type BaseEditor struct {
	grid *GridBridge
}

func NewBaseEditor(grid *GridBridge) *BaseEditor {
	return &BaseEditor{grid: grid}
}

func (b *BaseEditor) OnProductTemplateUpdate(ctx context.Context, order OrderRecord, lineID int64) (*Session, error) {
	line, err := order.Line(lineID)
	if err != nil {
		return nil, err
	}
	if line.ProductTemplate.IsSet() && line.ConfigMode == enums.ConfigModeMatrix {
		return nil, b.grid.OpenGrid(ctx, order, lineID, enums.ConfiguratorModeAdd)
	}
	return nil, nil
}

func (b *BaseEditor) OnProductUpdate(ctx context.Context, order OrderRecord, lineID int64) error {
	return nil
}

func (b *BaseEditor) EditConfiguration(ctx context.Context, order OrderRecord, lineID int64) (*Session, error) {
	line, err := order.Line(lineID)
	if err != nil {
		return nil, err
	}
	if line.ConfigMode == enums.ConfigModeMatrix {
		return nil, b.grid.OpenGrid(ctx, order, lineID, enums.ConfiguratorModeEdit)
	}
	return nil, nil
}

func (b *BaseEditor) IsConfigurableTemplate(line orderline.Line) bool {
	return line.ConfigMode == enums.ConfigModeMatrix
}

// Configurable adds the product configurator on top of another editor.
type Configurable struct {
	base       LineEditor
	resolver   *Resolver
	controller *Controller
	grid       *GridBridge
	logg       *logger.Logger
}

// NewConfigurable wraps base. The reconciler's product hook is pointed at the wrapped
// editor so confirmed dialogs run the same follow-up as direct updates.
func NewConfigurable(base LineEditor, resolver *Resolver, controller *Controller, grid *GridBridge, reconciler *Reconciler, logg *logger.Logger) (*Configurable, error) {
	switch {
	case base == nil:
		return nil, fmt.Errorf("base editor required")
	case resolver == nil:
		return nil, fmt.Errorf("resolver required")
	case controller == nil:
		return nil, fmt.Errorf("controller required")
	case grid == nil:
		return nil, fmt.Errorf("grid bridge required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	c := &Configurable{base: base, resolver: resolver, controller: controller, grid: grid, logg: logg}
	if reconciler != nil {
		reconciler.OnProductUpdated(c.OnProductUpdate)
	}
	return c, nil
}

// OnProductTemplateUpdate resolves the new template. A determined variant is written
// directly under the line lock (then the options dialog when it has optional products);
// otherwise the configurator or the grid takes over.
func (c *Configurable) OnProductTemplateUpdate(ctx context.Context, order OrderRecord, lineID int64) (*Session, error) {
	line, err := order.Line(lineID)
	if err != nil {
		return nil, err
	}
	if !line.ProductTemplate.IsSet() {
		return c.base.OnProductTemplateUpdate(ctx, order, lineID)
	}

	res, err := c.resolver.Resolve(ctx, line.ProductTemplate.ID, RequestContextFrom(ctx))
	if err != nil {
		return nil, err
	}

	route := c.resolver.Route(res)
	c.logg.Debug(c.logg.WithLineID(ctx, lineID), fmt.Sprintf("template %d routed to %s", line.ProductTemplate.ID, route))
	switch route {
	case RouteDirect:
		if line.Product.ID == res.ProductID {
			return nil, nil
		}
		product := types.Many2One{ID: res.ProductID, Name: res.ProductName}
		err := c.controller.Guard(ctx, order, lineID, func() error {
			return order.Update(ctx, lineID, orderline.Patch{Product: &product})
		})
		if err != nil {
			return nil, err
		}
		if res.HasOptionalProducts {
			return c.controller.OpenConfigurator(ctx, order, lineID, enums.ConfiguratorModeOptions)
		}
		return nil, c.OnProductUpdate(ctx, order, lineID)
	case RouteMatrix:
		return nil, c.grid.OpenGrid(ctx, order, lineID, enums.ConfiguratorModeAdd)
	default:
		return c.controller.OpenConfigurator(ctx, order, lineID, enums.ConfiguratorModeAdd)
	}
}

func (c *Configurable) OnProductUpdate(ctx context.Context, order OrderRecord, lineID int64) error {
	return c.base.OnProductUpdate(ctx, order, lineID)
}

// EditConfiguration reopens the configurator on a configurable line. Matrix lines are
// routed to the grid by OpenConfigurator itself, so the base is not called first.
func (c *Configurable) EditConfiguration(ctx context.Context, order OrderRecord, lineID int64) (*Session, error) {
	line, err := order.Line(lineID)
	if err != nil {
		return nil, err
	}
	if !line.IsConfigurable {
		return c.base.EditConfiguration(ctx, order, lineID)
	}
	return c.controller.OpenConfigurator(ctx, order, lineID, enums.ConfiguratorModeEdit)
}

func (c *Configurable) IsConfigurableTemplate(line orderline.Line) bool {
	return c.base.IsConfigurableTemplate(line) || line.IsConfigurable
}

package configurator

import (
	"context"
	"fmt"

	"github.com/angelmondragon/purchase-configurator/pkg/enums"
	pkgerrors "github.com/angelmondragon/purchase-configurator/pkg/errors"
	"github.com/angelmondragon/purchase-configurator/pkg/logger"
	"github.com/angelmondragon/purchase-configurator/pkg/metrics"
)

// GridBridge hands a line over to the matrix surface.
type GridBridge struct {
	surface    GridSurface
	reconciler *Reconciler
	logg       *logger.Logger
	metrics    *metrics.ConfiguratorMetrics
}

func NewGridBridge(surface GridSurface, reconciler *Reconciler, logg *logger.Logger, m *metrics.ConfiguratorMetrics) (*GridBridge, error) {
	if surface == nil {
		return nil, fmt.Errorf("grid surface required")
	}
	if reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &GridBridge{surface: surface, reconciler: reconciler, logg: logg, metrics: m}, nil
}

// OpenGrid fetches the grid for the line's template and shows it. In edit mode the
// line's attribute values are passed as the focus hint; otherwise the launcher line
// is removed since the grid creates its own lines.
func (g *GridBridge) OpenGrid(ctx context.Context, order OrderRecord, lineID int64, mode enums.ConfiguratorMode) error {
	line, err := order.Line(lineID)
	if err != nil {
		return err
	}
	if !line.ProductTemplate.IsSet() {
		return pkgerrors.New(pkgerrors.CodeValidation, "product template is required to open the grid")
	}

	req := GridRequest{
		OrderID:                order.ID(),
		LineID:                 lineID,
		TemplateID:             line.ProductTemplate.ID,
		PricelistID:            order.PricelistID(),
		Mode:                   mode,
		FocusAttributeValueIDs: []int64{},
	}
	if mode == enums.ConfiguratorModeEdit {
		req.FocusAttributeValueIDs = line.AttributeValueIDs()
	}

	grid, err := g.surface.Fetch(ctx, req)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch grid")
	}
	if err := g.surface.Open(ctx, req, grid); err != nil {
		return err
	}
	g.metrics.IncGridOpen(string(mode))
	g.logg.Info(g.logg.WithField(ctx, "mode", string(mode)), "grid configurator opened")

	if mode != enums.ConfiguratorModeEdit {
		return g.reconciler.RemovePlaceholder(ctx, order, lineID)
	}
	return nil
}

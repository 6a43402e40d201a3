package configurator

import (
	"context"
	"fmt"

	"github.com/angelmondragon/purchase-configurator/pkg/enums"
	pkgerrors "github.com/angelmondragon/purchase-configurator/pkg/errors"
	"github.com/angelmondragon/purchase-configurator/pkg/metrics"
)

// Route is where a template update goes next.
type Route string

const (
	RouteDirect       Route = "direct"
	RouteConfigurator Route = "configurator"
	RouteMatrix       Route = "matrix"
)

// Resolver decides whether a template already determines a variant.
type Resolver struct {
	endpoint        VariantEndpoint
	matrixAvailable bool
	metrics         *metrics.ConfiguratorMetrics
}

func NewResolver(endpoint VariantEndpoint, matrixAvailable bool, m *metrics.ConfiguratorMetrics) (*Resolver, error) {
	if endpoint == nil {
		return nil, fmt.Errorf("variant endpoint required")
	}
	return &Resolver{endpoint: endpoint, matrixAvailable: matrixAvailable, metrics: m}, nil
}

// Resolve asks the backend once. Transport failures come back as dependency errors and
// are never retried.
func (r *Resolver) Resolve(ctx context.Context, templateID int64, reqCtx RequestContext) (VariantResolution, error) {
	if templateID <= 0 {
		return VariantResolution{}, pkgerrors.New(pkgerrors.CodeValidation, "product template is required")
	}
	resp, err := r.endpoint.SingleProductVariant(ctx, templateID, reqCtx)
	if err != nil {
		r.metrics.IncResolution("error")
		if pkgerrors.As(err) != nil {
			return VariantResolution{}, err
		}
		return VariantResolution{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve single product variant")
	}
	res := VariantResolution{
		ProductID:           resp.ProductID,
		ProductName:         resp.ProductName,
		HasOptionalProducts: resp.HasOptionalProducts,
		Mode:                resp.Mode,
	}
	r.metrics.IncResolution(string(r.Route(res)))
	return res, nil
}

// Route picks the next step for res given this resolver's matrix support.
func (r *Resolver) Route(res VariantResolution) Route {
	return res.Route(r.matrixAvailable)
}

// Route picks the next step. An undetermined template without a mode, or with a mode
// nobody can serve, goes to the configurator.
func (v VariantResolution) Route(matrixAvailable bool) Route {
	if v.Determined() {
		return RouteDirect
	}
	if v.Mode == "" || v.Mode == string(enums.ConfigModeConfigurator) || !matrixAvailable {
		return RouteConfigurator
	}
	return RouteMatrix
}

package configurator

import (
	"context"
	"fmt"

	"github.com/angelmondragon/purchase-configurator/internal/orderline"
	pkgerrors "github.com/angelmondragon/purchase-configurator/pkg/errors"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ToUpdateData converts the confirmed main product into a line patch. Both attribute
// collections always start with DELETE_ALL so nothing stale survives.
func ToUpdateData(ctx context.Context, names NameResolver, product SelectedProduct, reqCtx RequestContext) (orderline.Patch, error) {
	refs, err := names.NameGet(ctx, []int64{product.ProductID}, reqCtx)
	if err != nil {
		return orderline.Patch{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve product display name")
	}
	if len(refs) == 0 {
		return orderline.Patch{}, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %d not found", product.ProductID))
	}
	ref := refs[0]
	qty := product.Quantity

	custom := make([]orderline.Command, 0, len(product.CustomAttributeValues)+1)
	custom = append(custom, orderline.DeleteAll())
	for _, value := range product.CustomAttributeValues {
		custom = append(custom, orderline.Create(value))
	}

	noVariant := []orderline.Command{orderline.DeleteAll()}
	if len(product.NoVariantAttributeValues) > 0 {
		noVariant = append(noVariant, orderline.LinkMany(noVariantIDs(product.NoVariantAttributeValues)...))
	}

	variantValues := product.VariantValues
	if variantValues == nil {
		variantValues = []int64{}
	}

	return orderline.Patch{
		Product:                    &ref,
		ProductQty:                 &qty,
		VariantAttributeValueIDs:   variantValues,
		CustomAttributeValues:      custom,
		NoVariantAttributeValueIDs: noVariant,
	}, nil
}

// ToLineCreationContexts maps optional products to line creation contexts, keeping
// their order.
func ToLineCreationContexts(products []SelectedProduct) []orderline.CreationContext {
	out := make([]orderline.CreationContext, 0, len(products))
	for _, product := range products {
		links := make([]orderline.Command, 0, len(product.NoVariantAttributeValues))
		for _, id := range noVariantIDs(product.NoVariantAttributeValues) {
			links = append(links, orderline.LinkMany(id))
		}
		creates := make([]orderline.Command, 0, len(product.CustomAttributeValues))
		for _, value := range product.CustomAttributeValues {
			creates = append(creates, orderline.Create(value))
		}
		out = append(out, orderline.CreationContext{
			DefaultProductID:                  product.ProductID,
			DefaultProductTemplateID:          product.ProductTemplateID,
			DefaultProductQty:                 product.Quantity,
			DefaultNoVariantAttributeValueIDs: links,
			DefaultCustomAttributeValueIDs:    creates,
		})
	}
	return out
}

// ValidateSelection checks a confirmed result before it touches the order.
func ValidateSelection(result ConfiguratorResult) error {
	if len(result) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "configurator returned no product")
	}
	for i, product := range result {
		if err := validate.Struct(product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("selected product %d is invalid", i))
		}
		if product.Quantity.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("selected product %d has a negative quantity", i))
		}
	}
	return nil
}

func noVariantIDs(values []NoVariantValue) []int64 {
	ids := make([]int64, 0, len(values))
	for _, value := range values {
		ids = append(ids, value.Value)
	}
	return ids
}

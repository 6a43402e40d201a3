package configurator

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/angelmondragon/purchase-configurator/internal/orderline"
	"github.com/angelmondragon/purchase-configurator/pkg/enums"
	pkgerrors "github.com/angelmondragon/purchase-configurator/pkg/errors"
	"github.com/angelmondragon/purchase-configurator/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func richProduct() SelectedProduct {
	return SelectedProduct{
		ProductID:         200,
		ProductTemplateID: 20,
		Quantity:          decimal.RequireFromString("2.5"),
		VariantValues:     []int64{21, 22},
		CustomAttributeValues: []orderline.CustomValue{
			{AttributeValueID: 31, CustomText: "left handed"},
			{AttributeValueID: 32, CustomText: "oak"},
		},
		NoVariantAttributeValues: []NoVariantValue{
			{AttributeValueID: 41, Value: 41},
			{AttributeValueID: 43, Value: 43},
		},
	}
}

func TestToUpdateDataAlwaysClearsCollections(t *testing.T) {
	patch, err := ToUpdateData(context.Background(), &stubNames{}, selected(100, 10, 2), nil)
	require.NoError(t, err)

	require.NotNil(t, patch.Product)
	assert.Equal(t, types.Many2One{ID: 100, Name: "Product 100"}, *patch.Product)
	require.NotNil(t, patch.ProductQty)
	assert.True(t, patch.ProductQty.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, []orderline.Command{orderline.DeleteAll()}, patch.CustomAttributeValues)
	assert.Equal(t, []orderline.Command{orderline.DeleteAll()}, patch.NoVariantAttributeValueIDs)
	assert.NotNil(t, patch.VariantAttributeValueIDs)
	assert.Nil(t, patch.ProductTemplate)
}

func TestToUpdateDataReplacesCollections(t *testing.T) {
	patch, err := ToUpdateData(context.Background(), &stubNames{}, richProduct(), nil)
	require.NoError(t, err)

	require.Len(t, patch.CustomAttributeValues, 3)
	assert.Equal(t, enums.CommandOperationDeleteAll, patch.CustomAttributeValues[0].Operation)
	assert.Equal(t, enums.CommandOperationCreate, patch.CustomAttributeValues[1].Operation)
	assert.Equal(t, "left handed", patch.CustomAttributeValues[1].Values.CustomText)
	assert.Equal(t, int64(32), patch.CustomAttributeValues[2].Values.AttributeValueID)

	assert.Equal(t, []orderline.Command{orderline.DeleteAll(), orderline.LinkMany(41, 43)}, patch.NoVariantAttributeValueIDs)
	assert.Equal(t, []int64{21, 22}, patch.VariantAttributeValueIDs)
}

func TestToUpdateDataNameLookupFailure(t *testing.T) {
	_, err := ToUpdateData(context.Background(), &stubNames{err: errors.New("timeout")}, selected(100, 10, 1), nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeDependency))
}

func TestToLineCreationContextsKeepsOrder(t *testing.T) {
	products := []SelectedProduct{selected(300, 30, 1), richProduct(), selected(100, 10, 7)}

	contexts := ToLineCreationContexts(products)
	require.Len(t, contexts, 3)
	assert.Equal(t, int64(300), contexts[0].DefaultProductID)
	assert.Equal(t, int64(200), contexts[1].DefaultProductID)
	assert.Equal(t, int64(20), contexts[1].DefaultProductTemplateID)
	assert.Equal(t, int64(100), contexts[2].DefaultProductID)
	assert.True(t, contexts[2].DefaultProductQty.Equal(decimal.NewFromInt(7)))

	assert.Equal(t, []orderline.Command{orderline.LinkMany(41), orderline.LinkMany(43)}, contexts[1].DefaultNoVariantAttributeValueIDs)
	require.Len(t, contexts[1].DefaultCustomAttributeValueIDs, 2)
	assert.Equal(t, enums.CommandOperationCreate, contexts[1].DefaultCustomAttributeValueIDs[0].Operation)
	assert.Empty(t, contexts[0].DefaultNoVariantAttributeValueIDs)
}

func TestToLineCreationContextsEmpty(t *testing.T) {
	assert.Empty(t, ToLineCreationContexts(nil))
}

func TestUpdateDataAndCreationContextAgree(t *testing.T) {
	product := richProduct()
	ctx := context.Background()
	order := orderline.NewOrder(1, 7)
	edited := order.AppendLine(orderline.Line{ProductTemplate: types.Ref(20)})

	patch, err := ToUpdateData(ctx, &stubNames{}, product, nil)
	require.NoError(t, err)
	require.NoError(t, order.Update(ctx, edited.ID, patch))
	viaPatch, err := order.Line(edited.ID)
	require.NoError(t, err)

	created, err := order.AddNew(ctx, enums.LinePositionBottom, ToLineCreationContexts([]SelectedProduct{product})[0], enums.EntryModeReadonly)
	require.NoError(t, err)

	assert.True(t, viaPatch.ProductQty.Equal(product.Quantity))
	assert.True(t, created.ProductQty.Equal(product.Quantity))
	assert.Equal(t, sorted(viaPatch.NoVariantAttributeValueIDs), sorted(created.NoVariantAttributeValueIDs))
	assert.Equal(t, []int64{41, 43}, sorted(created.NoVariantAttributeValueIDs))
	assert.Equal(t, viaPatch.CustomAttributeValues, created.CustomAttributeValues)
	assert.Equal(t, product.CustomAttributeValues, created.CustomAttributeValues)
}

func TestValidateSelection(t *testing.T) {
	negative := selected(100, 10, 1)
	negative.Quantity = decimal.NewFromInt(-1)
	badCustom := richProduct()
	badCustom.CustomAttributeValues[0].AttributeValueID = 0

	cases := []struct {
		name   string
		result ConfiguratorResult
		ok     bool
	}{
		{name: "valid", result: ConfiguratorResult{selected(100, 10, 1), richProduct()}, ok: true},
		{name: "empty", result: nil},
		{name: "missing product", result: ConfiguratorResult{selected(0, 10, 1)}},
		{name: "missing template", result: ConfiguratorResult{selected(100, 0, 1)}},
		{name: "negative quantity", result: ConfiguratorResult{negative}},
		{name: "custom value without attribute", result: ConfiguratorResult{badCustom}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSelection(tc.result)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
		})
	}
}

func sorted(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

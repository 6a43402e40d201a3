package markup

import (
	"testing"

	"github.com/angelmondragon/purchase-configurator/internal/configurator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const configureFragment = `
<div class="js_product main_product">
  <input type="hidden" class="product_template_id" value="10"/>
  <input type="hidden" class="product_id" name="product_id" value="100"/>
  <ul class="js_add_cart_variants">
    <li>
      <input type="radio" class="js_variant_change radio_input" name="ptal-1" value="11" checked="checked"/>
      <input type="radio" class="js_variant_change radio_input" name="ptal-1" value="12"/>
    </li>
    <li>
      <select class="js_variant_change" name="ptal-2">
        <option value="21">Steel</option>
        <option value="22" selected="selected">Oak</option>
      </select>
    </li>
    <li>
      <input type="radio" class="js_variant_change no_variant" name="ptal-3" value="31"
        data-value_id="31" data-value_name="Gift wrap" data-attribute_name="Packaging" data-is_custom="False" checked/>
    </li>
    <li>
      <select class="js_variant_change no_variant" name="ptal-4">
        <option value="41" data-value_id="41" data-value_name="Custom" data-attribute_name="Engraving" data-is_custom="True">Custom</option>
      </select>
    </li>
  </ul>
  <div class="oe_unchanged_value_ids" data-unchanged_value_ids="[51,52]"></div>
  <input type="text" name="add_qty" value="3"/>
</div>`

func TestParseExtractsSelection(t *testing.T) {
	form, err := Parse(configureFragment)
	require.NoError(t, err)

	assert.Equal(t, int64(100), form.ProductID())
	assert.Equal(t, []int64{11, 22, 31, 41, 51, 52}, form.VariantValues())
	assert.True(t, form.Quantity().Equal(decimal.NewFromInt(3)))

	assert.Equal(t, []configurator.NoVariantValue{
		{AttributeValueID: 31, AttributeName: "Packaging", ValueName: "Gift wrap", Value: 31},
		{AttributeValueID: 41, AttributeName: "Engraving", ValueName: "Custom", Value: 41, IsCustom: true},
	}, form.NoVariantValues())
}

func TestProductIDFromCheckedRadio(t *testing.T) {
	form, err := Parse(`<div>
  <input type="radio" name="product_id" value="7"/>
  <input type="radio" name="product_id" value="8" checked/>
</div>`)
	require.NoError(t, err)
	assert.Equal(t, int64(8), form.ProductID())
}

func TestMissingOrDynamicProductIsZero(t *testing.T) {
	form, err := Parse(`<div><input type="hidden" name="product_id" value=""/></div>`)
	require.NoError(t, err)
	assert.Zero(t, form.ProductID())

	form, err = Parse(`<div><p>nothing to pick</p></div>`)
	require.NoError(t, err)
	assert.Zero(t, form.ProductID())
	assert.Empty(t, form.VariantValues())
	assert.Empty(t, form.NoVariantValues())
	assert.True(t, form.Quantity().Equal(decimal.NewFromInt(1)))
}

func TestSetProductIDIsRendered(t *testing.T) {
	form, err := Parse(`<div><input type="hidden" name="product_id" value="0"/></div>`)
	require.NoError(t, err)

	form.SetProductID(500)
	assert.Equal(t, int64(500), form.ProductID())

	out, err := form.Render()
	require.NoError(t, err)
	assert.Contains(t, out, `value="500"`)

	again, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, int64(500), again.ProductID())
}

func TestSelectWithoutSelectionUsesFirstOption(t *testing.T) {
	form, err := Parse(`<div><select class="js_variant_change"><option value="61">S</option><option value="62">M</option></select></div>`)
	require.NoError(t, err)
	assert.Equal(t, []int64{61}, form.VariantValues())
}

func TestParseRejectsEmptyMarkup(t *testing.T) {
	_, err := Parse("   ")
	assert.Error(t, err)

	_, err = NewExtractor().Extract("")
	assert.Error(t, err)
}

func TestExtractorReturnsForm(t *testing.T) {
	form, err := NewExtractor().Extract(configureFragment)
	require.NoError(t, err)
	assert.Equal(t, int64(100), form.ProductID())
}

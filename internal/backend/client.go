package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/purchase-configurator/internal/configurator"
	pkgerrors "github.com/angelmondragon/purchase-configurator/pkg/errors"
	"github.com/angelmondragon/purchase-configurator/pkg/types"
)

const (
	callKWPath                 = "/web/dataset/call_kw"
	configurePath              = "/purchase_product_configurator/configure"
	createVariantPath          = "/sale/create_product_variant"
	modelProductTemplate       = "product.template"
	modelProductProduct        = "product.product"
	errorBodyReadLimit   int64 = 1024
	defaultTimeout             = 15 * time.Second
)

var errBaseURLRequired = errors.New("erp base url is required")

// Client talks JSON-RPC to the ERP server that owns products and attributes.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	database   string
	nextID     atomic.Int64
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the server URL given to NewClient.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithAPIKey authenticates every call with a bearer key.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// WithDatabase selects the database on multi-tenant servers.
func WithDatabase(name string) Option {
	return func(c *Client) {
		c.database = strings.TrimSpace(name)
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	client := &Client{
		baseURL:    strings.TrimSpace(baseURL),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.baseURL == "" {
		return nil, errBaseURLRequired
	}
	return client, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      int64  `json:"id"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

func (e *rpcError) Error() string {
	if e.Data.Message != "" {
		return fmt.Sprintf("rpc error %d: %s: %s", e.Code, e.Data.Name, e.Data.Message)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type callKWParams struct {
	Model  string         `json:"model"`
	Method string         `json:"method"`
	Args   []any          `json:"args"`
	Kwargs map[string]any `json:"kwargs"`
}

// SingleProductVariant asks whether the template resolves to one variant.
func (c *Client) SingleProductVariant(ctx context.Context, templateID int64, reqCtx configurator.RequestContext) (configurator.SingleVariantResponse, error) {
	var out struct {
		ProductID           types.Many2One `json:"product_id"`
		ProductName         string         `json:"product_name"`
		HasOptionalProducts bool           `json:"has_optional_products"`
		Mode                string         `json:"mode"`
	}
	err := c.callKW(ctx, modelProductTemplate, "get_single_product_variant", []any{templateID}, map[string]any{"context": contextOrEmpty(reqCtx)}, &out)
	if err != nil {
		return configurator.SingleVariantResponse{}, err
	}
	name := out.ProductName
	if name == "" {
		name = out.ProductID.Name
	}
	return configurator.SingleVariantResponse{
		ProductID:           out.ProductID.ID,
		ProductName:         name,
		HasOptionalProducts: out.HasOptionalProducts,
		Mode:                out.Mode,
	}, nil
}

// Configure fetches the rendered configuration form.
func (c *Client) Configure(ctx context.Context, req configurator.ConfigureRequest) (string, error) {
	qty, _ := req.Quantity.Float64()
	params := map[string]any{
		"product_template_id":                    req.ProductTemplateID,
		"quantity":                               qty,
		"pricelist_id":                           pricelistOrFalse(req.PricelistID),
		"product_template_attribute_value_ids":   nonNil(req.VariantValueIDs),
		"product_no_variant_attribute_value_ids": nonNil(req.NoVariantValueIDs),
		"context":                                contextOrEmpty(req.Context),
	}
	var markup string
	if err := c.call(ctx, configurePath, params, &markup); err != nil {
		return "", err
	}
	return markup, nil
}

// NameGet resolves display names of product variants.
func (c *Client) NameGet(ctx context.Context, productIDs []int64, reqCtx configurator.RequestContext) ([]types.Many2One, error) {
	if len(productIDs) == 0 {
		return []types.Many2One{}, nil
	}
	var out []types.Many2One
	err := c.callKW(ctx, modelProductProduct, "name_get", []any{productIDs}, map[string]any{"context": contextOrEmpty(reqCtx)}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateProductVariant returns the variant of the combination, creating it if needed.
func (c *Client) CreateProductVariant(ctx context.Context, templateID int64, combination []int64) (int64, error) {
	encoded, err := json.Marshal(nonNil(combination))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal combination")
	}
	params := map[string]any{
		"product_template_id":                  templateID,
		"product_template_attribute_value_ids": string(encoded),
	}
	var out types.Many2One
	if err := c.call(ctx, createVariantPath, params, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// Grid loads the matrix of the template for the grid surface.
func (c *Client) Grid(ctx context.Context, req configurator.GridRequest) (json.RawMessage, error) {
	kwargs := map[string]any{
		"display_extra_price": true,
		"context": map[string]any{
			"pricelist": req.PricelistID,
		},
	}
	var out json.RawMessage
	if err := c.callKW(ctx, modelProductTemplate, "_get_template_matrix", []any{[]int64{req.TemplateID}}, kwargs, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) callKW(ctx context.Context, model, method string, args []any, kwargs map[string]any, out any) error {
	path := fmt.Sprintf("%s/%s/%s", callKWPath, model, method)
	return c.call(ctx, path, callKWParams{Model: model, Method: method, Args: args, Kwargs: kwargs}, out)
}

func (c *Client) call(ctx context.Context, path string, params any, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "erp client not configured")
	}
	payload, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: "call", ID: c.nextID.Add(1), Params: params})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal rpc request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(path), bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build rpc request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.database != "" {
		httpReq.Header.Set("X-Odoo-Database", c.database)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute rpc request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "rpc request failed")
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode rpc response")
	}
	if rpcResp.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, rpcResp.Error, "rpc call rejected").
			WithDetails(map[string]any{"step": path})
	}
	if out == nil || len(rpcResp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode rpc result")
	}
	return nil
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}

func contextOrEmpty(reqCtx configurator.RequestContext) configurator.RequestContext {
	if reqCtx == nil {
		return configurator.RequestContext{}
	}
	return reqCtx
}

func pricelistOrFalse(id int64) any {
	if id <= 0 {
		return false
	}
	return id
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

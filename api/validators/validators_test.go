package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/purchase-configurator/pkg/errors"
)

type templateBody struct {
	ProductTemplateID int64  `json:"product_template_id" validate:"gte=0"`
	ConfigMode        string `json:"config_mode" validate:"omitempty,oneof=none configurator matrix"`
}

func TestDecodeJSONBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"product_template_id":10,"config_mode":"matrix"}`))
	var body templateBody
	if err := DecodeJSONBody(req, &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.ProductTemplateID != 10 || body.ConfigMode != "matrix" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"product_template_id":10,"extra":true}`))
	var body templateBody
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"product_template_id":-1,"config_mode":"grid"}`))
	var body templateBody
	err := DecodeJSONBody(req, &body)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", typed.Details())
	}
	if details["product_template_id"] != "must be at least 0" {
		t.Fatalf("unexpected template message %q", details["product_template_id"])
	}
	if details["config_mode"] != "must be one of none configurator matrix" {
		t.Fatalf("unexpected mode message %q", details["config_mode"])
	}
}

type selectionBody struct {
	Products []struct {
		Quantity decimal.Decimal `json:"quantity" validate:"gte=0"`
	} `json:"products" validate:"required,min=1,dive"`
}

func TestDecodeJSONBodyValidatesNestedQuantities(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"products":[{"quantity":"2"},{"quantity":"-1.5"}]}`))
	var body selectionBody
	typed := pkgerrors.As(DecodeJSONBody(req, &body))
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", typed)
	}
	details, _ := typed.Details().(map[string]string)
	if details["products[1].quantity"] != "must be at least 0" {
		t.Fatalf("unexpected details %v", details)
	}
}

type lineBody struct {
	Placeholder bool `json:"placeholder"`
}

func TestDecodeOptionalJSONBody(t *testing.T) {
	var body lineBody
	if err := DecodeOptionalJSONBody(httptest.NewRequest(http.MethodPost, "/", nil), &body); err != nil {
		t.Fatalf("empty body should decode, got %v", err)
	}
	if body.Placeholder {
		t.Fatalf("expected zero value body")
	}
	if err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", nil), &body); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected required body to fail, got %v", err)
	}
}

func withParam(key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestParsePathID(t *testing.T) {
	id, err := ParsePathID(withParam("orderId", "42"), "orderId")
	if err != nil || id != 42 {
		t.Fatalf("expected 42, got %d (%v)", id, err)
	}
	for _, raw := range []string{"", "abc", "0", "-3"} {
		if _, err := ParsePathID(withParam("orderId", raw), "orderId"); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error for %q, got %v", raw, err)
		}
	}
}

func TestParsePathString(t *testing.T) {
	if _, err := ParsePathString(withParam("sessionId", " "), "sessionId"); err == nil {
		t.Fatalf("expected error for blank param")
	}
	got, err := ParsePathString(withParam("sessionId", "abc"), "sessionId")
	if err != nil || got != "abc" {
		t.Fatalf("unexpected result %q (%v)", got, err)
	}
}

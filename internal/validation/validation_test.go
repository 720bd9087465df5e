package validation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestStructRules(t *testing.T) {
	v := New()

	valid := []interface{}{
		ItemURI{BasketID: 1, ProductID: 2},
		BuyerURI{UserID: 3},
		QuantityRequest{Quantity: 0},
		PromoRequest{Code: "DISCOUNT10"},
		TotalsQuery{},
	}
	for _, s := range valid {
		if err := v.Struct(s); err != nil {
			t.Fatalf("expected %T to be valid, got %v", s, err)
		}
	}

	invalid := []interface{}{
		ItemURI{BasketID: 0, ProductID: 2},
		ItemURI{BasketID: 1, ProductID: -2},
		BasketURI{},
		QuantityRequest{Quantity: -1},
		PromoRequest{Code: "   "},
		PromoRequest{Code: strings.Repeat("X", 65)},
	}
	for _, s := range invalid {
		if err := v.Struct(s); err == nil {
			t.Fatalf("expected %+v to be invalid", s)
		}
	}
}

func serve(t *testing.T, method, route, target, body string, h gin.HandlerFunc) (int, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Handle(method, route, h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	r.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("response is not JSON: %s", w.Body.String())
		}
	}
	return w.Code, out
}

func TestBindURI_DomainMessages(t *testing.T) {
	v := New()
	h := func(c *gin.Context) {
		var p ItemURI
		if err := BindURI(c, &p, v); err != nil {
			return
		}
		c.JSON(http.StatusOK, gin.H{"basket": p.BasketID, "product": p.ProductID})
	}

	code, out := serve(t, http.MethodGet, "/b/:basketId/i/:productId", "/b/4/i/9", "", h)
	if code != http.StatusOK || out["product"].(float64) != 9 {
		t.Fatalf("unexpected %d %v", code, out)
	}

	code, out = serve(t, http.MethodGet, "/b/:basketId/i/:productId", "/b/0/i/9", "", h)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	fields := out["fields"].(map[string]interface{})
	if fields["BasketID"] != "Invalid basket ID" {
		t.Fatalf("unexpected fields %v", fields)
	}

	code, out = serve(t, http.MethodGet, "/b/:basketId/i/:productId", "/b/abc/i/9", "", h)
	if code != http.StatusBadRequest || out["error"] != "invalid_path" {
		t.Fatalf("expected invalid_path, got %d %v", code, out)
	}
}

func TestBindQuantity(t *testing.T) {
	v := New()
	h := func(c *gin.Context) {
		q, err := BindQuantity(c, v)
		if err != nil {
			return
		}
		c.JSON(http.StatusOK, gin.H{"quantity": q})
	}

	code, out := serve(t, http.MethodPost, "/q", "/q", "7", h)
	if code != http.StatusOK || out["quantity"].(float64) != 7 {
		t.Fatalf("unexpected %d %v", code, out)
	}

	code, out = serve(t, http.MethodPost, "/q", "/q", "-3", h)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	if out["fields"].(map[string]interface{})["Quantity"] != "Quantity cannot be negative" {
		t.Fatalf("unexpected body %v", out)
	}

	code, out = serve(t, http.MethodPost, "/q", "/q", `"seven"`, h)
	if code != http.StatusBadRequest || out["error"] != "invalid_request_body" {
		t.Fatalf("expected invalid_request_body, got %d %v", code, out)
	}
}

func TestBindPromoCode(t *testing.T) {
	v := New()
	h := func(c *gin.Context) {
		code, err := BindPromoCode(c, v)
		if err != nil {
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": code})
	}

	code, out := serve(t, http.MethodPost, "/p", "/p", `"flash30"`, h)
	if code != http.StatusOK || out["code"] != "flash30" {
		t.Fatalf("unexpected %d %v", code, out)
	}

	code, out = serve(t, http.MethodPost, "/p", "/p", `"  "`, h)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	if out["fields"].(map[string]interface{})["Code"] != "Promo code cannot be empty" {
		t.Fatalf("unexpected body %v", out)
	}
}

func TestBindQuery(t *testing.T) {
	v := New()
	h := func(c *gin.Context) {
		var q TotalsQuery
		if err := BindQuery(c, &q, v); err != nil {
			return
		}
		c.JSON(http.StatusOK, gin.H{"promo": q.PromoCode})
	}

	code, out := serve(t, http.MethodGet, "/t", "/t?promoCode=WELCOME20", "", h)
	if code != http.StatusOK || out["promo"] != "WELCOME20" {
		t.Fatalf("unexpected %d %v", code, out)
	}
}

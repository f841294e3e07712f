package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second)
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

// =====================
// GetOrderDetail
// =====================

func TestGetOrderDetail_CamelCasePayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders/O1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"tableName": "T3",
			"deposit": 20000,
			"lines": [
				{"dishName": "Pho", "sizeName": "Large", "unitPrice": 50000, "quantity": 2, "notes": "no onion"}
			]
		}`))
	})

	detail, err := client.GetOrderDetail(context.Background(), "O1")
	if err != nil {
		t.Fatalf("get order detail failed: %v", err)
	}
	if detail.OrderID != "O1" {
		t.Fatalf("expected order ID O1, got %q", detail.OrderID)
	}
	if detail.TableName != "T3" {
		t.Fatalf("expected table T3, got %q", detail.TableName)
	}
	if !detail.Deposit.Equal(dec("20000")) {
		t.Fatalf("expected deposit 20000, got %s", detail.Deposit)
	}
	if len(detail.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(detail.Lines))
	}
	line := detail.Lines[0]
	if line.DishName != "Pho" || line.SizeName != "Large" || line.Quantity != 2 || line.Notes != "no onion" {
		t.Fatalf("unexpected line: %+v", line)
	}
	if !line.UnitPrice.Equal(dec("50000")) {
		t.Fatalf("expected unit price 50000, got %s", line.UnitPrice)
	}
}

func TestGetOrderDetail_SnakeCasePayloadWithStringPrices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"items": [
				{"dish_name": "Bun Cha", "size_name": "Regular", "unit_price": "45000.00", "quantity": 1, "note": "extra sauce", "table_name": "T7"}
			]
		}`))
	})

	detail, err := client.GetOrderDetail(context.Background(), "O2")
	if err != nil {
		t.Fatalf("get order detail failed: %v", err)
	}
	if detail.TableName != "T7" {
		t.Fatalf("expected table from line fallback, got %q", detail.TableName)
	}
	line := detail.Lines[0]
	if line.DishName != "Bun Cha" || line.SizeName != "Regular" || line.Notes != "extra sauce" {
		t.Fatalf("unexpected normalized line: %+v", line)
	}
	if !line.UnitPrice.Equal(dec("45000")) {
		t.Fatalf("expected unit price 45000, got %s", line.UnitPrice)
	}
}

func TestGetOrderDetail_PascalCasePayload(t *testing.T) {
	// encoding/json matches names case-insensitively, which covers the
	// PascalCase variant one app emits.
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"Lines": [
				{"DishName": "Pho", "SizeName": "Large", "UnitPrice": 50000, "Quantity": 3}
			]
		}`))
	})

	detail, err := client.GetOrderDetail(context.Background(), "O3")
	if err != nil {
		t.Fatalf("get order detail failed: %v", err)
	}
	if len(detail.Lines) != 1 || detail.Lines[0].DishName != "Pho" || detail.Lines[0].Quantity != 3 {
		t.Fatalf("unexpected lines: %+v", detail.Lines)
	}
}

func TestGetOrderDetail_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "order not found"}`))
	})

	_, err := client.GetOrderDetail(context.Background(), "missing")
	var upErr *Error
	if !errors.As(err, &upErr) {
		t.Fatalf("expected *Error, got: %v", err)
	}
	if upErr.Status != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", upErr.Status)
	}
	if upErr.Message != "order not found" {
		t.Fatalf("expected server message preserved, got %q", upErr.Message)
	}
}

// =====================
// AddItemsToOrder
// =====================

func TestAddItemsToOrder_SendsOneBatch(t *testing.T) {
	dishID := uuid.New()
	sizeID := uuid.New()

	var got struct {
		Items []struct {
			DishID   string `json:"dish_id"`
			SizeID   string `json:"size_id"`
			Quantity int32  `json:"quantity"`
			Notes    string `json:"notes"`
		} `json:"items"`
	}
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Method != http.MethodPost || r.URL.Path != "/orders/O1/items" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("expected bearer token forwarded, got %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	})

	ctx := WithToken(context.Background(), "Bearer tok")
	err := client.AddItemsToOrder(ctx, "O1", []OrderItem{
		{DishID: dishID, SizeID: sizeID, Quantity: 2, Notes: "no onion"},
	})
	if err != nil {
		t.Fatalf("add items failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one batch call, got %d", calls)
	}
	if len(got.Items) != 1 {
		t.Fatalf("expected 1 item in batch, got %d", len(got.Items))
	}
	if got.Items[0].DishID != dishID.String() || got.Items[0].SizeID != sizeID.String() {
		t.Fatalf("wrong IDs in payload: %+v", got.Items[0])
	}
	if got.Items[0].Quantity != 2 || got.Items[0].Notes != "no onion" {
		t.Fatalf("wrong item fields: %+v", got.Items[0])
	}
}

func TestAddItemsToOrder_SurfacesServerMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message": "dish sold out"}`))
	})

	err := client.AddItemsToOrder(context.Background(), "O1", []OrderItem{
		{DishID: uuid.New(), SizeID: uuid.New(), Quantity: 1},
	})
	var upErr *Error
	if !errors.As(err, &upErr) {
		t.Fatalf("expected *Error, got: %v", err)
	}
	if upErr.Message != "dish sold out" {
		t.Fatalf("expected server message, got %q", upErr.Message)
	}
}

// =====================
// FetchMenu
// =====================

func TestFetchMenu_NormalizesBothCasings(t *testing.T) {
	itemID := uuid.New()
	sizeID := uuid.New()
	catID := uuid.New()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/menu" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"menu_items": []map[string]any{
				{
					"id":            itemID.String(),
					"name":          "Pho",
					"category_id":   catID.String(),
					"category_name": "Noodles",
					"imageUrls":     []string{"pho.jpg"},
					"in_stock":      false,
					"size_list": []map[string]any{
						{"id": sizeID.String(), "name": "Large", "price": "50000"},
					},
				},
			},
			"categories": []map[string]any{
				{"id": catID.String(), "name": "Noodles"},
			},
		})
	})

	items, categories, err := client.FetchMenu(context.Background())
	if err != nil {
		t.Fatalf("fetch menu failed: %v", err)
	}
	if len(items) != 1 || len(categories) != 1 {
		t.Fatalf("expected 1 item and 1 category, got %d/%d", len(items), len(categories))
	}
	item := items[0]
	if item.ID != itemID || item.Name != "Pho" || item.CategoryID != catID || item.CategoryName != "Noodles" {
		t.Fatalf("unexpected item: %+v", item)
	}
	if item.InStock {
		t.Fatal("in_stock=false was not normalized")
	}
	if len(item.Images) != 1 || item.Images[0] != "pho.jpg" {
		t.Fatalf("imageUrls fallback not applied: %+v", item.Images)
	}
	if len(item.Sizes) != 1 {
		t.Fatalf("size_list fallback not applied: %+v", item.Sizes)
	}
	size := item.Sizes[0]
	if size.ID != sizeID || size.Name != "Large" || !size.UnitPrice.Equal(dec("50000")) {
		t.Fatalf("unexpected size: %+v", size)
	}
}

func TestFetchMenu_MissingInStockDefaultsTrue(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items": [{"id": "` + uuid.NewString() + `", "name": "Pho", "sizes": []}]}`))
	})

	items, _, err := client.FetchMenu(context.Background())
	if err != nil {
		t.Fatalf("fetch menu failed: %v", err)
	}
	if !items[0].InStock {
		t.Fatal("items without a stock flag should default to in stock")
	}
}

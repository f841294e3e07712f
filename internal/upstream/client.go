package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/meja-pos/composer-gateway/internal/menu"
	"github.com/shopspring/decimal"
)

// Client talks to the backend order API. It implements the composer's
// OrderQuerier and OrderMutator interfaces and the menu Fetcher.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the given base URL, e.g. "http://pos:8080/api".
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// GetOrderDetail fetches the full current line list for an order or table
// identifier. GET {base}/orders/{id}
func (c *Client) GetOrderDetail(ctx context.Context, orderID string) (*OrderDetail, error) {
	var raw rawOrderDetail
	if err := c.get(ctx, "/orders/"+url.PathEscape(orderID), &raw); err != nil {
		return nil, fmt.Errorf("get order detail: %w", err)
	}
	detail := raw.normalize()
	detail.OrderID = orderID
	return detail, nil
}

// AddItemsToOrder submits pending lines as one batch call.
// POST {base}/orders/{id}/items. The backend applies the batch atomically.
func (c *Client) AddItemsToOrder(ctx context.Context, orderID string, items []OrderItem) error {
	body := addItemsRequest{Items: make([]addItemRequest, len(items))}
	for i, it := range items {
		body.Items[i] = addItemRequest{
			DishID:   it.DishID.String(),
			SizeID:   it.SizeID.String(),
			Quantity: it.Quantity,
			Notes:    it.Notes,
		}
	}
	if err := c.post(ctx, "/orders/"+url.PathEscape(orderID)+"/items", body, nil); err != nil {
		return fmt.Errorf("add items to order: %w", err)
	}
	return nil
}

// FetchMenu retrieves the full catalog. GET {base}/menu
func (c *Client) FetchMenu(ctx context.Context) ([]menu.MenuItem, []menu.Category, error) {
	var raw rawMenu
	if err := c.get(ctx, "/menu", &raw); err != nil {
		return nil, nil, fmt.Errorf("fetch menu: %w", err)
	}
	items, categories := raw.normalize()
	return items, categories, nil
}

// --- HTTP plumbing ---

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := tokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// readError extracts the server's message text from an error response body.
// The backend is inconsistent about the field name, so try the usual ones.
func readError(resp *http.Response) error {
	upErr := &Error{Status: resp.StatusCode}
	buf, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return upErr
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(buf, &payload); err == nil {
		switch {
		case payload.Error != "":
			upErr.Message = payload.Error
		case payload.Message != "":
			upErr.Message = payload.Message
		case payload.Detail != "":
			upErr.Message = payload.Detail
		}
	}
	return upErr
}

// --- Wire shapes ---
//
// The backend emits camelCase from one app variant and snake_case from the
// other. encoding/json matches field names case-insensitively, which covers
// PascalCase for free; the snake_case spellings get explicit fallback fields.
// Everything is converted to canonical types here and nowhere else.

// flexNumber decodes a JSON number or a numeric string; the backends
// disagree on how they serialize money.
type flexNumber string

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	if s == "null" {
		s = ""
	}
	*n = flexNumber(s)
	return nil
}

type addItemsRequest struct {
	Items []addItemRequest `json:"items"`
}

type addItemRequest struct {
	DishID   string `json:"dish_id"`
	SizeID   string `json:"size_id"`
	Quantity int32  `json:"quantity"`
	Notes    string `json:"notes"`
}

type rawOrderDetail struct {
	Lines      []rawOrderLine `json:"lines"`
	Items      []rawOrderLine `json:"items"`
	Deposit    flexNumber     `json:"deposit"`
	Customer   string         `json:"customerName"`
	CustomerS  string         `json:"customer_name"`
	TableName  string         `json:"tableName"`
	TableNameS string         `json:"table_name"`
}

type rawOrderLine struct {
	DishName   string     `json:"dishName"`
	DishNameS  string     `json:"dish_name"`
	SizeName   string     `json:"sizeName"`
	SizeNameS  string     `json:"size_name"`
	UnitPrice  flexNumber `json:"unitPrice"`
	UnitPriceS flexNumber `json:"unit_price"`
	Quantity   int32      `json:"quantity"`
	Notes      string     `json:"notes"`
	NoteS      string     `json:"note"`
	TableName  string     `json:"tableName"`
	TableNameS string     `json:"table_name"`
}

func (r rawOrderDetail) normalize() *OrderDetail {
	detail := &OrderDetail{
		Deposit:   numberToDecimal(r.Deposit),
		Customer:  firstNonEmpty(r.Customer, r.CustomerS),
		TableName: firstNonEmpty(r.TableName, r.TableNameS),
	}
	lines := r.Lines
	if len(lines) == 0 {
		lines = r.Items
	}
	detail.Lines = make([]OrderLine, len(lines))
	for i, l := range lines {
		detail.Lines[i] = OrderLine{
			DishName:  firstNonEmpty(l.DishName, l.DishNameS),
			SizeName:  firstNonEmpty(l.SizeName, l.SizeNameS),
			UnitPrice: firstDecimal(l.UnitPrice, l.UnitPriceS),
			Quantity:  l.Quantity,
			Notes:     firstNonEmpty(l.Notes, l.NoteS),
		}
		if detail.TableName == "" {
			detail.TableName = firstNonEmpty(l.TableName, l.TableNameS)
		}
	}
	return detail
}

type rawMenu struct {
	Items       []rawMenuItem `json:"items"`
	MenuItems   []rawMenuItem `json:"menuItems"`
	MenuItemsS  []rawMenuItem `json:"menu_items"`
	Categories  []rawCategory `json:"categories"`
	CategoriesS []rawCategory `json:"category_list"`
}

type rawMenuItem struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	CategoryID    string    `json:"categoryId"`
	CategoryIDS   string    `json:"category_id"`
	CategoryName  string    `json:"categoryName"`
	CategoryNameS string    `json:"category_name"`
	Images        []string  `json:"images"`
	ImageURLs     []string  `json:"imageUrls"`
	InStock       *bool     `json:"inStock"`
	InStockS      *bool     `json:"in_stock"`
	Sizes         []rawSize `json:"sizes"`
	SizeList      []rawSize `json:"size_list"`
}

type rawSize struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	UnitPrice  flexNumber `json:"unitPrice"`
	UnitPriceS flexNumber `json:"unit_price"`
	Price      flexNumber `json:"price"`
	RecipeID   string     `json:"recipeId"`
	RecipeIDS  string     `json:"recipe_id"`
}

type rawCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (r rawMenu) normalize() ([]menu.MenuItem, []menu.Category) {
	rawItems := r.Items
	if len(rawItems) == 0 {
		rawItems = r.MenuItems
	}
	if len(rawItems) == 0 {
		rawItems = r.MenuItemsS
	}
	items := make([]menu.MenuItem, len(rawItems))
	for i, ri := range rawItems {
		item := menu.MenuItem{
			ID:           parseUUID(ri.ID),
			Name:         ri.Name,
			Description:  ri.Description,
			CategoryID:   parseUUID(firstNonEmpty(ri.CategoryID, ri.CategoryIDS)),
			CategoryName: firstNonEmpty(ri.CategoryName, ri.CategoryNameS),
			Images:       ri.Images,
			InStock:      true,
		}
		if len(item.Images) == 0 {
			item.Images = ri.ImageURLs
		}
		if ri.InStock != nil {
			item.InStock = *ri.InStock
		} else if ri.InStockS != nil {
			item.InStock = *ri.InStockS
		}
		rawSizes := ri.Sizes
		if len(rawSizes) == 0 {
			rawSizes = ri.SizeList
		}
		item.Sizes = make([]menu.Size, len(rawSizes))
		for j, rs := range rawSizes {
			item.Sizes[j] = menu.Size{
				ID:        parseUUID(rs.ID),
				Name:      rs.Name,
				UnitPrice: firstDecimal(rs.UnitPrice, rs.UnitPriceS, rs.Price),
				RecipeID:  firstNonEmpty(rs.RecipeID, rs.RecipeIDS),
			}
		}
		items[i] = item
	}

	rawCategories := r.Categories
	if len(rawCategories) == 0 {
		rawCategories = r.CategoriesS
	}
	categories := make([]menu.Category, len(rawCategories))
	for i, rc := range rawCategories {
		categories[i] = menu.Category{ID: parseUUID(rc.ID), Name: rc.Name}
	}
	return items, categories
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstDecimal(values ...flexNumber) decimal.Decimal {
	for _, v := range values {
		if v != "" {
			return numberToDecimal(v)
		}
	}
	return decimal.Zero
}

func numberToDecimal(n flexNumber) decimal.Decimal {
	if n == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseUUID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// Package composer implements the order composition model: a per-screen
// store of order lines that reconciles against the backend's persisted
// order, accepts edits to pending lines only, derives totals, and submits
// exactly the pending delta on save.
package composer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/meja-pos/composer-gateway/internal/menu"
	"github.com/meja-pos/composer-gateway/internal/upstream"
	"github.com/shopspring/decimal"
)

// Errors returned by the composer.
var (
	ErrLineIndex    = errors.New("line index out of range")
	ErrSaveInFlight = errors.New("save already in progress")
	ErrNoOrder      = errors.New("no order to submit pending lines to")
	ErrSizeUnknown  = errors.New("size does not belong to item")
)

// OrderQuerier fetches the server's current detail for an order.
// Satisfied by *upstream.Client; narrow interface for testability.
type OrderQuerier interface {
	GetOrderDetail(ctx context.Context, orderID string) (*upstream.OrderDetail, error)
}

// OrderMutator submits pending lines to the server in one batch.
// Satisfied by *upstream.Client. The server applies the batch atomically.
type OrderMutator interface {
	AddItemsToOrder(ctx context.Context, orderID string, items []upstream.OrderItem) error
}

// ItemResolver looks up catalog items by name during reconciliation.
// Satisfied by *menu.Store.
type ItemResolver interface {
	FindItemByName(name string) (*menu.MenuItem, bool)
}

// Line is one row of the order being composed.
//
// A confirmed line already exists in the server's persisted order and is
// immutable here; its FixedPrice carries the historical unit price returned
// at load time, because the catalog price may have changed since. A pending
// line exists only in memory and may be edited or removed until save.
type Line struct {
	Item       *menu.MenuItem
	Size       string
	Quantity   int32
	Notes      string
	Confirmed  bool
	FixedPrice decimal.Decimal
}

// UnitPrice resolves the line's effective unit price: the historical price
// for confirmed lines, the current catalog price for pending ones. A size
// that no longer matches resolves to zero rather than failing.
func (l Line) UnitPrice() decimal.Decimal {
	if l.Confirmed {
		return l.FixedPrice
	}
	if l.Item != nil {
		if size, ok := l.Item.SizeByName(l.Size); ok {
			return size.UnitPrice
		}
	}
	return decimal.Zero
}

// Subtotal is UnitPrice × Quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice().Mul(decimal.NewFromInt32(l.Quantity))
}

// SaveResult reports what a successful Save submitted.
type SaveResult struct {
	OrderID string
	Items   []upstream.OrderItem
}

// Composer holds the line store for one open order screen. One instance per
// screen; discarded after a successful save or a cancel. Methods are safe
// for concurrent use because the gateway serves each screen from HTTP
// handler goroutines.
type Composer struct {
	querier  OrderQuerier
	mutator  OrderMutator
	resolver ItemResolver

	mu         sync.Mutex
	orderID    string
	tableName  string
	deposit    decimal.Decimal
	customer   string
	lines      []Line
	submitting bool
}

// New creates a Composer for the given order identifier. An empty orderID
// means there is no existing order and the store starts empty.
func New(orderID string, querier OrderQuerier, mutator OrderMutator, resolver ItemResolver) *Composer {
	return &Composer{
		orderID:  orderID,
		querier:  querier,
		mutator:  mutator,
		resolver: resolver,
	}
}

// Load brings the store up to date with the server. Lines fetched from the
// server are grouped by (dish name, size name, notes) with quantities summed,
// so duplicate rows for the same item collapse into one confirmed line.
// On failure the store is left empty; the caller retries by reopening.
func (c *Composer) Load(ctx context.Context) error {
	c.mu.Lock()
	orderID := c.orderID
	c.lines = nil
	c.mu.Unlock()

	if orderID == "" {
		return nil
	}

	detail, err := c.querier.GetOrderDetail(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", orderID, err)
	}

	lines := mergeDetailLines(detail.Lines, c.resolver)

	c.mu.Lock()
	c.lines = lines
	c.tableName = detail.TableName
	c.deposit = detail.Deposit
	c.customer = detail.Customer
	c.mu.Unlock()
	return nil
}

// mergeDetailLines converts server lines to confirmed Lines, collapsing
// duplicates and resolving catalog items by name. A dish that has since been
// deleted from the catalog falls back to a synthetic placeholder so the line
// still renders.
func mergeDetailLines(detail []upstream.OrderLine, resolver ItemResolver) []Line {
	type key struct{ dish, size, notes string }
	index := make(map[key]int, len(detail))
	var lines []Line

	for _, dl := range detail {
		k := key{dl.DishName, dl.SizeName, dl.Notes}
		if i, ok := index[k]; ok {
			lines[i].Quantity += dl.Quantity
			continue
		}
		item, ok := resolver.FindItemByName(dl.DishName)
		if !ok {
			item = menu.Placeholder(dl.DishName, dl.SizeName, dl.UnitPrice, "")
		}
		index[k] = len(lines)
		lines = append(lines, Line{
			Item:       item,
			Size:       dl.SizeName,
			Quantity:   dl.Quantity,
			Notes:      dl.Notes,
			Confirmed:  true,
			FixedPrice: dl.UnitPrice,
		})
	}
	return lines
}

// AddLine adds one unit of item+size as a pending line. If a pending line
// with the same item and size already exists, its quantity is incremented
// instead; repeated adds stack rather than creating duplicate rows.
func (c *Composer) AddLine(item *menu.MenuItem, size string) {
	if item == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitting {
		return
	}

	for i := range c.lines {
		l := &c.lines[i]
		if !l.Confirmed && l.Item != nil && l.Item.ID == item.ID && l.Size == size {
			l.Quantity++
			return
		}
	}
	c.lines = append(c.lines, Line{
		Item:     item,
		Size:     size,
		Quantity: 1,
	})
}

// SetQuantity overwrites a pending line's quantity. Quantities <= 0 remove
// the line. Confirmed lines are read-only: the call is a silent no-op, the
// UI is expected to disable the controls.
func (c *Composer) SetQuantity(index int, quantity int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.lines) {
		return ErrLineIndex
	}
	if c.submitting || c.lines[index].Confirmed {
		return nil
	}
	if quantity <= 0 {
		c.lines = append(c.lines[:index], c.lines[index+1:]...)
		return nil
	}
	c.lines[index].Quantity = quantity
	return nil
}

// SetNotes overwrites a pending line's notes. No-op on confirmed lines.
func (c *Composer) SetNotes(index int, notes string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.lines) {
		return ErrLineIndex
	}
	if c.submitting || c.lines[index].Confirmed {
		return nil
	}
	c.lines[index].Notes = notes
	return nil
}

// RemoveLine deletes a pending line. No-op on confirmed lines.
func (c *Composer) RemoveLine(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.lines) {
		return ErrLineIndex
	}
	if c.submitting || c.lines[index].Confirmed {
		return nil
	}
	c.lines = append(c.lines[:index], c.lines[index+1:]...)
	return nil
}

// Save submits the pending lines as one batch call. An empty pending set is
// a success with no network effect. On success the pending lines are cleared
// and the screen is expected to reload through a fresh Load; on failure the
// pending lines are retained untouched so the user can retry.
func (c *Composer) Save(ctx context.Context) (*SaveResult, error) {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return nil, ErrSaveInFlight
	}

	items, err := c.pendingItemsLocked()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if len(items) == 0 {
		c.mu.Unlock()
		return &SaveResult{OrderID: c.orderID}, nil
	}
	if c.orderID == "" {
		c.mu.Unlock()
		return nil, ErrNoOrder
	}
	orderID := c.orderID
	c.submitting = true
	c.mu.Unlock()

	// Single in-flight request; the store is frozen while it runs.
	saveErr := c.mutator.AddItemsToOrder(ctx, orderID, items)

	c.mu.Lock()
	c.submitting = false
	if saveErr == nil {
		kept := c.lines[:0]
		for _, l := range c.lines {
			if l.Confirmed {
				kept = append(kept, l)
			}
		}
		c.lines = kept
	}
	c.mu.Unlock()

	if saveErr != nil {
		return nil, fmt.Errorf("save order %s: %w", orderID, saveErr)
	}
	return &SaveResult{OrderID: orderID, Items: items}, nil
}

// pendingItemsLocked maps the pending lines to the server's item shape.
func (c *Composer) pendingItemsLocked() ([]upstream.OrderItem, error) {
	var items []upstream.OrderItem
	for i, l := range c.lines {
		if l.Confirmed {
			continue
		}
		size, ok := l.Item.SizeByName(l.Size)
		if !ok {
			return nil, fmt.Errorf("line %d (%s/%s): %w", i, l.Item.Name, l.Size, ErrSizeUnknown)
		}
		items = append(items, upstream.OrderItem{
			DishID:   l.Item.ID,
			SizeID:   size.ID,
			Quantity: l.Quantity,
			Notes:    l.Notes,
		})
	}
	return items, nil
}

// Subtotal is the running total of the whole order, confirmed and pending
// lines together, derived on every call.
func (c *Composer) Subtotal() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// HasPendingChanges reports whether any pending line exists; drives the
// save button.
func (c *Composer) HasPendingChanges() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.lines {
		if !l.Confirmed {
			return true
		}
	}
	return false
}

// Lines returns a copy of the current line store in order.
func (c *Composer) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// OrderID returns the identifier the composer was opened for; empty for a
// new order.
func (c *Composer) OrderID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orderID
}

// TableName returns the table name reported by the last load, if any.
func (c *Composer) TableName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tableName
}

// Deposit returns the order's deposit reported by the last load.
func (c *Composer) Deposit() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deposit
}

// Customer returns the customer name reported by the last load.
func (c *Composer) Customer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.customer
}

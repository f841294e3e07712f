// Package upstream is the HTTP client for the backend order API, the source
// of truth for persisted orders and the catalog. It owns the canonical shapes
// of the two order collaborator calls the composer consumes and decodes the
// backend's payload variants into them once, at this boundary.
package upstream

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderDetail is the full current state of a persisted order.
// Partial or delta responses are not supported.
type OrderDetail struct {
	OrderID   string
	TableName string
	Deposit   decimal.Decimal
	Customer  string
	Lines     []OrderLine
}

// OrderLine is one persisted line of an order. UnitPrice is the historical
// price captured when the line was placed, not the current catalog price.
type OrderLine struct {
	DishName  string
	SizeName  string
	UnitPrice decimal.Decimal
	Quantity  int32
	Notes     string
}

// OrderItem is a single line in a batch add-items call.
type OrderItem struct {
	DishID   uuid.UUID
	SizeID   uuid.UUID
	Quantity int32
	Notes    string
}

// Error is a non-2xx response from the backend, carrying the best-effort
// message text the server returned so it can be surfaced to the user.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream: %s (status %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("upstream: unexpected status %d", e.Status)
}

type contextKey string

const tokenKey contextKey = "upstream-token"

// WithToken attaches the caller's bearer token to the context. The client
// forwards it verbatim on every request; the backend enforces authorization.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey, token)
}

func tokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

package domain

import "github.com/shopspring/decimal"

// The persisted stores are JSON arrays with bare numeric price/total fields.
// Decimal keeps fractional prices exact across load/save cycles.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// PriceTier is one (price, stock) entry of an event's inventory.
// Within one event there is at most one tier per distinct price.
type PriceTier struct {
	Price decimal.Decimal `json:"price"`
	Stock int64           `json:"stock"`
}

// Event is a sellable event with its tiers kept sorted ascending by price.
// The ordering is load-bearing: allocation consumes cheapest tiers first.
type Event struct {
	ID    int64       `json:"id"`
	Name  string      `json:"name"`
	Tiers []PriceTier `json:"prices"`
}

// BreakdownLine records how many tickets an allocation took at one price.
type BreakdownLine struct {
	Price decimal.Decimal `json:"price"`
	Count int64           `json:"count"`
}

// Purchase is an append-only record of a successful allocation. It is
// immutable except for the cancellation fields, which transition exactly
// once from false to true. Timestamps are epoch milliseconds.
type Purchase struct {
	ID          int64           `json:"id"`
	Timestamp   int64           `json:"timestamp"`
	EventID     int64           `json:"eventId"`
	EventName   string          `json:"eventName"`
	Quantity    int64           `json:"quantity"`
	Breakdown   []BreakdownLine `json:"breakdown"`
	Total       decimal.Decimal `json:"total"`
	Cancelled   bool            `json:"cancelled"`
	CancelledAt int64           `json:"cancelledAt,omitempty"`
}

type User struct {
	ID           int64  `json:"id"`
	FullName     string `json:"fullname"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"password,omitempty"`
	Role         Role   `json:"role"`
	ResetToken   string `json:"resetToken,omitempty"`
	ResetExpires int64  `json:"resetExpires,omitempty"`
}

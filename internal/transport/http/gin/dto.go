package httpgin

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vharuk/ticketd/internal/domain"
)

// EventRef addresses an event by numeric id or by name. Clients send either
// a JSON number or a string in the same field.
type EventRef string

func (r *EventRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = EventRef(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}

	*r = EventRef(n.String())
	return nil
}

func (r EventRef) String() string {
	return strings.TrimSpace(string(r))
}

type RegisterRequest struct {
	FullName string `json:"fullname" binding:"required"`
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ForgotRequest struct {
	Email string `json:"email" binding:"required"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required"`
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

type ChangePasswordRequest struct {
	Username        string `json:"username" binding:"required"`
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

type UsernameRequest struct {
	Username string `json:"username" binding:"required"`
}

type AddEventRequest struct {
	Name   string           `json:"name" binding:"required"`
	Price  *decimal.Decimal `json:"price" binding:"required"`
	Amount *decimal.Decimal `json:"amount" binding:"required"`
}

type TierInput struct {
	Price decimal.Decimal `json:"price"`
	Stock decimal.Decimal `json:"stock"`
}

type UpdateEventRequest struct {
	ID     int64            `json:"id" binding:"required"`
	Name   string           `json:"name"`
	Prices []TierInput      `json:"prices"`
	Price  *decimal.Decimal `json:"price"`
	Amount *decimal.Decimal `json:"amount"`
}

type DeleteEventRequest struct {
	ID int64 `json:"id" binding:"required"`
}

type PurchaseRequest struct {
	EventID  EventRef `json:"eventId" binding:"required"`
	Quantity int64    `json:"quantity" binding:"required,gt=0"`
}

type CancelPurchaseRequest struct {
	ID int64 `json:"id" binding:"required"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Available *int64 `json:"available,omitempty"`
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type LoginResponse struct {
	Success  bool   `json:"success"`
	FullName string `json:"fullname"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type ForgotResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token"`
}

type PurchaseResponse struct {
	Success    bool                   `json:"success"`
	PurchaseID int64                  `json:"purchaseId"`
	Breakdown  []domain.BreakdownLine `json:"breakdown"`
	Total      decimal.Decimal        `json:"total"`
}

type AvailabilityResponse struct {
	Available int64 `json:"available"`
}

func parseEpochMilli(s string) int64 {
	if s == "" {
		return 0
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}

	return v
}

package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/vharuk/ticketd/internal/domain"
	redisrepo "github.com/vharuk/ticketd/internal/repository/redis"
	"github.com/vharuk/ticketd/internal/service"
	"github.com/vharuk/ticketd/internal/service/inventory"
	"github.com/vharuk/ticketd/internal/service/purchases"
	"github.com/vharuk/ticketd/internal/service/users"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// accounts
	r.POST("/register", handleRegister(svcs))
	r.POST("/login", handleLogin(svcs))
	r.POST("/forgot", handleForgot(svcs))
	r.POST("/reset-password", handleResetPassword(svcs))

	r.GET("/users", handleListUsers(svcs))
	r.POST("/users/change-password", handleChangePassword(svcs))
	r.POST("/users/make-admin", handleMakeAdmin(svcs))
	r.POST("/users/delete", handleDeleteUser(svcs))

	// catalog
	r.GET("/events", handleListEvents(svcs))
	r.GET("/availability", handleAvailability(svcs))
	r.POST("/events/add", handleAddEvent(svcs))
	r.POST("/events/update", handleUpdateEvent(svcs))
	r.POST("/events/delete", handleDeleteEvent(svcs))

	// purchases
	r.POST("/tickets/purchase", handlePurchase(svcs, idem))
	r.GET("/purchases", handleListPurchases(svcs))
	r.POST("/purchases/cancel", handleCancelPurchase(svcs))
	r.GET("/purchases/export", handleExportPurchases(svcs))
	r.GET("/purchases/export.csv", handleExportPurchases(svcs))
	r.GET("/export-purchases", handleExportPurchases(svcs))

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Register account
// @Param    req body  RegisterRequest true "payload"
// @Success  201 {object} domain.User
// @Failure  409 {object} ErrorResponse "username or email taken"
// @Router   /register [post]
func handleRegister(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		user, err := svcs.Users.Register(
			c.Request.Context(),
			req.FullName,
			req.Username,
			req.Email,
			req.Password,
			domain.Role(req.Role),
		)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, user)
	}
}

// @Summary  Login
// @Param    req body  LoginRequest true "payload"
// @Success  200 {object} LoginResponse
// @Failure  401 {object} ErrorResponse
// @Router   /login [post]
func handleLogin(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		user, err := svcs.Users.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, LoginResponse{
			Success:  true,
			FullName: user.FullName,
			Email:    user.Email,
			Role:     string(user.Role),
		})
	}
}

// @Summary  Request password reset token
// @Param    req body  ForgotRequest true "payload"
// @Success  200 {object} ForgotResponse
// @Router   /forgot [post]
func handleForgot(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ForgotRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		token, err := svcs.Users.Forgot(c.Request.Context(), req.Email)
		if err != nil {
			respondErr(c, err)
			return
		}

		// No mail transport; the token is returned to the caller directly.
		c.JSON(http.StatusOK, ForgotResponse{
			Success: true,
			Message: "reset token issued",
			Token:   token,
		})
	}
}

// @Summary  Reset password with token
// @Param    req body  ResetPasswordRequest true "payload"
// @Success  200 {object} SuccessResponse
// @Failure  400 {object} ErrorResponse "invalid or expired token"
// @Router   /reset-password [post]
func handleResetPassword(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ResetPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		err := svcs.Users.ResetPassword(c.Request.Context(), req.Email, req.Token, req.NewPassword)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "password updated"})
	}
}

// @Summary  List accounts
// @Success  200 {array} domain.User
// @Router   /users [get]
func handleListUsers(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svcs.Users.List(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// @Summary  Change password
// @Param    req body  ChangePasswordRequest true "payload"
// @Success  200 {object} SuccessResponse
// @Router   /users/change-password [post]
func handleChangePassword(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChangePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		err := svcs.Users.ChangePassword(
			c.Request.Context(),
			req.Username,
			req.CurrentPassword,
			req.NewPassword,
		)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "password changed"})
	}
}

// @Summary  Promote account to admin
// @Param    req body  UsernameRequest true "payload"
// @Success  200 {object} SuccessResponse
// @Router   /users/make-admin [post]
func handleMakeAdmin(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UsernameRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		if err := svcs.Users.MakeAdmin(c.Request.Context(), req.Username); err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "role updated"})
	}
}

// @Summary  Delete account
// @Param    req body  UsernameRequest true "payload"
// @Success  200 {object} SuccessResponse
// @Failure  403 {object} ErrorResponse "admin accounts are protected"
// @Router   /users/delete [post]
func handleDeleteUser(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UsernameRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		if err := svcs.Users.Delete(c.Request.Context(), req.Username); err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "user deleted"})
	}
}

// @Summary  List events with price tiers
// @Success  200 {array} domain.Event
// @Router   /events [get]
func handleListEvents(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := svcs.Inventory.List(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 15s
		writeJSONWithCache(c, http.StatusOK, events, "public, max-age=15", true)
	}
}

// @Summary  Total remaining stock for an event
// @Param    event  query  string  true  "event id or name"
// @Success  200 {object} AvailabilityResponse
// @Failure  404 {object} ErrorResponse
// @Router   /availability [get]
func handleAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref := strings.TrimSpace(c.Query("event"))
		if ref == "" {
			badRequest(c, "event query parameter required")
			return
		}

		total, err := svcs.Inventory.Availability(c.Request.Context(), ref)
		if err != nil {
			respondErr(c, err)
			return
		}

		writeJSONWithCache(c, http.StatusOK, AvailabilityResponse{Available: total}, "public, max-age=15", true)
	}
}

// @Summary  Add stock (creates the event on first add)
// @Param    req body  AddEventRequest true "payload"
// @Success  200 {object} domain.Event
// @Failure  400 {object} ErrorResponse
// @Router   /events/add [post]
func handleAddEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		if !req.Amount.IsInteger() {
			badRequest(c, "amount must be an integer")
			return
		}

		ev, err := svcs.Inventory.AddStock(
			c.Request.Context(),
			req.Name,
			*req.Price,
			req.Amount.IntPart(),
		)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, ev)
	}
}

// @Summary  Update event name and/or tiers
// @Param    req body  UpdateEventRequest true "payload"
// @Success  200 {object} domain.Event
// @Failure  404 {object} ErrorResponse
// @Router   /events/update [post]
func handleUpdateEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		var tiers []domain.PriceTier
		if req.Prices != nil {
			tiers = make([]domain.PriceTier, 0, len(req.Prices))
			for _, t := range req.Prices {
				tiers = append(tiers, domain.PriceTier{
					Price: t.Price,
					Stock: t.Stock.IntPart(),
				})
			}
		}

		var amount *int64
		if req.Amount != nil {
			if !req.Amount.IsInteger() {
				badRequest(c, "amount must be an integer")
				return
			}
			v := req.Amount.IntPart()
			amount = &v
		}

		ev, err := svcs.Inventory.UpdateEvent(
			c.Request.Context(),
			req.ID,
			req.Name,
			tiers,
			req.Price,
			amount,
		)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, ev)
	}
}

// @Summary  Delete event
// @Param    req body  DeleteEventRequest true "payload"
// @Success  200 {object} SuccessResponse
// @Failure  404 {object} ErrorResponse
// @Router   /events/delete [post]
func handleDeleteEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DeleteEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		if err := svcs.Inventory.DeleteEvent(c.Request.Context(), req.ID); err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "event deleted"})
	}
}

// @Summary  Purchase tickets (idempotent)
// @Param    req body  PurchaseRequest true "payload"
// @Header   200 {string} Idempotency-Key "echo"
// @Success  200 {object} PurchaseResponse
// @Failure  400 {object} ErrorResponse "not enough stock / bad quantity"
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /tickets/purchase [post]
func handlePurchase(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PurchaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemPurchase(req.EventID.String(), idemKey)

			if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(payload))
				return
			}

			locked, err := idem.AcquireLock(c.Request.Context(), idemStorageKey, 60*time.Second)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(payload))
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
				return
			}
		}

		rlKey := "ip:" + c.ClientIP()

		rec, err := svcs.Purchases.Purchase(
			c.Request.Context(),
			req.EventID.String(),
			req.Quantity,
			rlKey,
		)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := PurchaseResponse{
			Success:    true,
			PurchaseID: rec.ID,
			Breakdown:  rec.Breakdown,
			Total:      rec.Total,
		}

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusOK, resp)
	}
}

// @Summary  List purchases, newest first
// @Param    q      query  string  false "substring of event name or purchase id"
// @Param    event  query  string  false "exact event name"
// @Param    from   query  int     false "epoch ms, inclusive"
// @Param    to     query  int     false "epoch ms, inclusive"
// @Success  200 {array} domain.Purchase
// @Router   /purchases [get]
func handleListPurchases(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := purchases.Filter{
			Text:      c.Query("q"),
			EventName: c.Query("event"),
			From:      parseEpochMilli(c.Query("from")),
			To:        parseEpochMilli(c.Query("to")),
		}

		list, err := svcs.Purchases.Query(c.Request.Context(), f)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, list)
	}
}

// @Summary  Cancel a purchase and restore its stock
// @Param    req body  CancelPurchaseRequest true "payload"
// @Success  200 {object} SuccessResponse
// @Failure  400 {object} ErrorResponse "already cancelled"
// @Failure  404 {object} ErrorResponse
// @Router   /purchases/cancel [post]
func handleCancelPurchase(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CancelPurchaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		if err := svcs.Purchases.Cancel(c.Request.Context(), req.ID); err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "purchase cancelled"})
	}
}

// @Summary  Export purchases as CSV
// @Param    q      query  string  false "substring of event name or purchase id"
// @Param    event  query  string  false "exact event name"
// @Param    from   query  int     false "epoch ms, inclusive"
// @Param    to     query  int     false "epoch ms, inclusive"
// @Produce  text/csv
// @Success  200 {string} string
// @Router   /purchases/export [get]
func handleExportPurchases(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := purchases.Filter{
			Text:      c.Query("q"),
			EventName: c.Query("event"),
			From:      parseEpochMilli(c.Query("from")),
			To:        parseEpochMilli(c.Query("to")),
		}

		list, err := svcs.Purchases.Query(c.Request.Context(), f)
		if err != nil {
			respondErr(c, err)
			return
		}

		writeCSV(c, list)
	}
}

// --- Helpers ---

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var ve *inventory.ValidationError
	if errors.As(err, &ve) {
		badRequest(c, ve.Error())
		return
	}

	var ise *domain.InsufficientStockError
	if errors.As(err, &ise) {
		avail := ise.Available
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "not enough stock",
			Available: &avail,
		})
		return
	}

	switch {
	// inventory service
	case errors.Is(err, inventory.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
	// purchases service
	case errors.Is(err, purchases.ErrPurchaseNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "purchase not found"})
	case errors.Is(err, purchases.ErrAlreadyCancelled):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "purchase already cancelled"})
	case errors.Is(err, purchases.ErrRateLimited):
		c.Header("Retry-After", "60")
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many purchase attempts"})
	// users service
	case errors.Is(err, users.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
	case errors.Is(err, users.ErrUsernameTaken):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "username already exists"})
	case errors.Is(err, users.ErrEmailTaken):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "email already registered"})
	case errors.Is(err, users.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid username or password"})
	case errors.Is(err, users.ErrInvalidResetToken):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid or expired token"})
	case errors.Is(err, users.ErrAdminProtected):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "admin users cannot be deleted"})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

package httpgin

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vharuk/ticketd/internal/repository/jsonfile"
	"github.com/vharuk/ticketd/internal/service"
	"golang.org/x/crypto/bcrypt"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := jsonfile.NewStore(t.TempDir())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svcs := service.NewServices(
		store.Events(),
		store.Purchases(),
		store.Users(),
		nil, nil, nil,
		logger,
		service.Config{BcryptCost: bcrypt.MinCost},
	)

	return NewRouter(svcs, nil, logger)
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEventLifecycle(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/events/add", `{"name":"Jazz Night","price":9.99,"amount":10}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var created struct {
		ID     int64  `json:"id"`
		Name   string `json:"name"`
		Prices []struct {
			Price json.Number `json:"price"`
			Stock int64       `json:"stock"`
		} `json:"prices"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.EqualValues(t, 1, created.ID)
	require.Len(t, created.Prices, 1)
	assert.Equal(t, "9.99", created.Prices[0].Price.String())

	// Second add at another price becomes a second tier.
	w = doJSON(t, r, http.MethodPost, "/events/add", `{"name":"Jazz Night","price":20,"amount":5}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/availability?event=Jazz+Night", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"available":15}`, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("ETag"))

	w = doJSON(t, r, http.MethodPost, "/events/delete", `{"id":1}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/events/delete", `{"id":1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddEvent_RejectsFractionalAmount(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/events/add", `{"name":"x","price":10,"amount":2.5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPurchaseFlow(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/events/add", `{"name":"Jazz Night","price":5,"amount":2}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, r, http.MethodPost, "/events/add", `{"name":"Jazz Night","price":10,"amount":3}`)
	require.Equal(t, http.StatusOK, w.Code)

	// eventId as JSON number.
	w = doJSON(t, r, http.MethodPost, "/tickets/purchase", `{"eventId":1,"quantity":4}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success    bool  `json:"success"`
		PurchaseID int64 `json:"purchaseId"`
		Breakdown  []struct {
			Price json.Number `json:"price"`
			Count int64       `json:"count"`
		} `json:"breakdown"`
		Total json.Number `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.EqualValues(t, 1, resp.PurchaseID)
	require.Len(t, resp.Breakdown, 2)
	assert.Equal(t, "5", resp.Breakdown[0].Price.String())
	assert.EqualValues(t, 2, resp.Breakdown[0].Count)
	assert.Equal(t, "30", resp.Total.String())

	// eventId as name string.
	w = doJSON(t, r, http.MethodPost, "/tickets/purchase", `{"eventId":"jazz night","quantity":1}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Over-asking reports what is left, takes nothing.
	w = doJSON(t, r, http.MethodPost, "/tickets/purchase", `{"eventId":1,"quantity":10}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"available":0`)
}

func TestPurchase_BadRequests(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/tickets/purchase", `{"eventId":1,"quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/tickets/purchase", `{"quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/tickets/purchase", `{"eventId":"ghost","quantity":1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelFlow(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/events/add", `{"name":"Jazz Night","price":10,"amount":5}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/tickets/purchase", `{"eventId":1,"quantity":2}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/purchases/cancel", `{"id":1}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Stock is back.
	w = doJSON(t, r, http.MethodGet, "/availability?event=1", "")
	assert.JSONEq(t, `{"available":5}`, w.Body.String())

	// Double cancel is rejected.
	w = doJSON(t, r, http.MethodPost, "/purchases/cancel", `{"id":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/purchases/cancel", `{"id":99}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListPurchasesAndExport(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/events/add", `{"name":"Jazz Night","price":9.99,"amount":10}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, r, http.MethodPost, "/tickets/purchase", `{"eventId":1,"quantity":2}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/purchases", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	w = doJSON(t, r, http.MethodGet, "/purchases/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "purchases.csv")
	assert.Contains(t, w.Body.String(), "id,timestamp,date,eventId,eventName,quantity,total,breakdown,cancelled")
	assert.Contains(t, w.Body.String(), "2x9.99")

	// Both aliases serve the same export.
	w = doJSON(t, r, http.MethodGet, "/purchases/export.csv", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")

	w = doJSON(t, r, http.MethodGet, "/export-purchases", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAccountEndpoints(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/register",
		`{"fullname":"Ada L","username":"ada","email":"ada@example.com","password":"secret"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "secret")

	w = doJSON(t, r, http.MethodPost, "/register",
		`{"fullname":"Ada 2","username":"ADA","email":"other@example.com","password":"pw"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodPost, "/login", `{"username":"ada","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"fullname":"Ada L"`)

	w = doJSON(t, r, http.MethodPost, "/login", `{"username":"ada","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodPost, "/forgot", `{"email":"ada@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var forgot struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &forgot))
	require.NotEmpty(t, forgot.Token)

	w = doJSON(t, r, http.MethodPost, "/reset-password",
		`{"email":"ada@example.com","token":"`+forgot.Token+`","newPassword":"fresh"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/login", `{"username":"ada","password":"fresh"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/users/make-admin", `{"username":"ada"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/users/delete", `{"username":"ada"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"password"`)
}

func TestRequestIDHeader(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/healthz", "")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

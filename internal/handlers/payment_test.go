package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/example/navalha/internal/models"
	"github.com/example/navalha/internal/services"
)

type errorBody struct {
	Success bool `json:"success"`
	Error   struct {
		Code    int               `json:"code"`
		Name    string            `json:"name"`
		Message map[string]string `json:"message"`
		Detail  string            `json:"detail"`
	} `json:"error"`
}

func setupPaymentApp(t *testing.T, core *stubPaymentCore) *fiber.App {
	t.Helper()
	h := NewPaymentHandler(core, zaptest.NewLogger(t))

	app := fiber.New()
	app.Post("/payments", h.CreatePayment)
	app.Post("/payments/pix/webhook", h.PixWebhook)
	app.Get("/payments", h.ListPayments)
	app.Get("/payments/:id/status", h.GetPaymentStatus)
	app.Get("/payments/:id", h.GetPayment)
	app.Post("/payments/:id/confirm", h.ConfirmPayment)
	app.Post("/payments/:id/reject", h.RejectPayment)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestPaymentHandler_CreatePayment(t *testing.T) {
	apptID := uuid.New()
	paymentID := uuid.New()
	core := &stubPaymentCore{createResp: &services.PaymentResponse{
		PaymentID: paymentID,
		Method:    models.PaymentMethodPix,
		Status:    models.PaymentStatusPending,
		Amount:    decimal.RequireFromString("65.00"),
		Code:      "00020126...6304ABCD",
		ExpiresAt: time.Date(2026, 5, 4, 14, 30, 0, 0, time.UTC),
	}}
	app := setupPaymentApp(t, core)

	resp, body := doJSON(t, app, "POST", "/payments",
		`{"appointment_id":"`+apptID.String()+`","amount":"65.00","method":" PIX ","description":"Corte"}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(body))

	assert.Equal(t, apptID, core.createReq.AppointmentID)
	assert.Equal(t, models.PaymentMethodPix, core.createMethod)
	assert.Equal(t, "65", core.createReq.Amount.String())
	assert.Equal(t, "Corte", core.createReq.Description)

	var out struct {
		Data services.PaymentResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, paymentID, out.Data.PaymentID)
	assert.Equal(t, "00020126...6304ABCD", out.Data.Code)
}

func TestPaymentHandler_CreatePaymentNumericAmount(t *testing.T) {
	core := &stubPaymentCore{createResp: &services.PaymentResponse{}}
	app := setupPaymentApp(t, core)

	resp, _ := doJSON(t, app, "POST", "/payments", `{"appointment_id":"`+uuid.NewString()+`","amount":40,"method":"bitcoin"}`)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, models.PaymentMethodBitcoin, core.createMethod)
	assert.Equal(t, "40", core.createReq.Amount.String())
}

func TestPaymentHandler_CreatePaymentErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"bad appointment id", `{"appointment_id":"nope","amount":"10","method":"pix"}`, nil, 400, "InvalidPaymentRequest"},
		{"bad json", `{"appointment_id":`, nil, 400, "InvalidPaymentRequest"},
		{"unsupported", `{"appointment_id":"` + uuid.NewString() + `","amount":"10","method":"credit_card"}`,
			services.NewPaymentError(services.ErrorUnsupportedMethod, `method "credit_card"`, nil), 400, "UnsupportedMethod"},
		{"address", `{"appointment_id":"` + uuid.NewString() + `","amount":"10","method":"bitcoin"}`,
			services.NewPaymentError(services.ErrorAddressUnavailable, "", nil), 503, "AddressUnavailable"},
		{"persistence", `{"appointment_id":"` + uuid.NewString() + `","amount":"10","method":"pix"}`,
			services.NewPaymentError(services.ErrorPersistenceFailure, "create payment", nil), 500, "PersistenceFailure"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := setupPaymentApp(t, &stubPaymentCore{createErr: tc.err})

			resp, body := doJSON(t, app, "POST", "/payments", tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)

			var out errorBody
			require.NoError(t, json.Unmarshal(body, &out))
			assert.False(t, out.Success)
			assert.Equal(t, tc.code, out.Error.Name)
			assert.NotEmpty(t, out.Error.Message["pt"])
			assert.NotEmpty(t, out.Error.Message["en"])
		})
	}
}

func TestPaymentHandler_GetPaymentStatus(t *testing.T) {
	core := &stubPaymentCore{status: models.PaymentStatusApproved}
	app := setupPaymentApp(t, core)
	id := uuid.New()

	resp, body := doJSON(t, app, "GET", "/payments/"+id.String()+"/status", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true,"payment_id":"`+id.String()+`","status":"approved"}`, string(body))

	core.statusErr = services.ErrNotFound
	resp, body = doJSON(t, app, "GET", "/payments/"+id.String()+"/status", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), `"name":"NotFound"`)

	resp, _ = doJSON(t, app, "GET", "/payments/not-a-uuid/status", "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPaymentHandler_GetPayment(t *testing.T) {
	core := &stubPaymentCore{}
	app := setupPaymentApp(t, core)

	resp, _ := doJSON(t, app, "GET", "/payments/"+uuid.NewString(), "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	core.payment = &models.Payment{Method: models.PaymentMethodPix, Status: models.PaymentStatusPending}
	core.payment.ID = uuid.New()
	resp, body := doJSON(t, app, "GET", "/payments/"+core.payment.ID.String(), "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), core.payment.ID.String())
}

func TestPaymentHandler_ListPayments(t *testing.T) {
	core := &stubPaymentCore{total: 42}
	app := setupPaymentApp(t, core)
	apptID := uuid.New()

	resp, body := doJSON(t, app, "GET", "/payments?page=2&limit=10&method=bitcoin&status=pending&appointment_id="+apptID.String(), "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, services.PaymentFilter{
		Method:        models.PaymentMethodBitcoin,
		Status:        models.PaymentStatusPending,
		AppointmentID: apptID,
		Limit:         10,
		Offset:        10,
	}, core.filter)
	assert.Contains(t, string(body), `"total_items":42`)

	resp, _ = doJSON(t, app, "GET", "/payments?appointment_id=zzz", "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPaymentHandler_ConfirmAndReject(t *testing.T) {
	core := &stubPaymentCore{}
	app := setupPaymentApp(t, core)
	id := uuid.NewString()

	resp, body := doJSON(t, app, "POST", "/payments/"+id+"/confirm", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"approved"`)

	resp, _ = doJSON(t, app, "POST", "/payments/"+id+"/reject", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, []models.PaymentStatus{models.PaymentStatusApproved, models.PaymentStatusRejected}, core.applied)

	core.applyErr = services.NewPaymentError(services.ErrorInvalidTransition, "payment is expired", nil)
	resp, body = doJSON(t, app, "POST", "/payments/"+id+"/confirm", "")
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), `"detail":"payment is expired"`)
}

func TestPaymentHandler_PixWebhook(t *testing.T) {
	core := &stubPaymentCore{}
	app := setupPaymentApp(t, core)
	id := uuid.NewString()

	resp, body := doJSON(t, app, "POST", "/payments/pix/webhook", `{"payment_id":"`+id+`","status":"APPROVED"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, []models.PaymentStatus{models.PaymentStatusApproved}, core.applied)

	resp, _ = doJSON(t, app, "POST", "/payments/pix/webhook", `{"payment_id":"x","status":"approved"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	core.applyErr = services.NewPaymentError(services.ErrorInvalidPaymentRequest, `status "pending" cannot be applied`, nil)
	resp, _ = doJSON(t, app, "POST", "/payments/pix/webhook", `{"payment_id":"`+id+`","status":"pending"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

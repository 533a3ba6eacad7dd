package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	billingapp "github.com/freelance/backend/internal/application/billing"
	"github.com/freelance/backend/internal/domain/shared"
	"github.com/freelance/backend/internal/infrastructure/cache"
	"github.com/freelance/backend/internal/infrastructure/config"
	"github.com/freelance/backend/internal/infrastructure/event"
	"github.com/freelance/backend/internal/infrastructure/export"
	"github.com/freelance/backend/internal/infrastructure/persistence"
	"github.com/freelance/backend/internal/infrastructure/printing"
	"github.com/freelance/backend/internal/interfaces/http/dto"
	"github.com/freelance/backend/internal/interfaces/http/handler"
	"github.com/freelance/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

var apiNow = time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

type apiClient struct {
	t       *testing.T
	engine  *gin.Engine
	metrics *sdkmetric.ManualReader
}

// newAPI wires the whole stack on an in-memory database
func newAPI(t *testing.T, limiter *middleware.RateLimiter) *apiClient {
	t.Helper()
	db, err := persistence.NewDatabase(&config.DatabaseConfig{Driver: config.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	repos := billingapp.Repositories{
		Clients:  persistence.NewGormClientRepository(db.DB),
		Projects: persistence.NewGormProjectRepository(db.DB),
		Invoices: persistence.NewGormInvoiceRepository(db.DB),
		Payments: persistence.NewGormPaymentRepository(db.DB),
		Tx:       persistence.NewGormTransactionManager(db.DB),
	}

	log := zap.NewNop()
	bus := event.NewInMemoryEventBus(log)
	activity := event.NewActivityLog(log, 20)
	store := cache.NewInMemoryIdempotencyStore()
	delivery := event.NewIdempotentHandler(activity, store, log)
	bus.Subscribe(delivery)

	opts := []billingapp.Option{
		billingapp.WithClock(shared.FixedClock{At: apiNow}),
		billingapp.WithEventPublisher(bus),
		billingapp.WithInvoiceLocks(billingapp.NewInvoiceLocks()),
	}
	invoices := billingapp.NewInvoiceService(repos, opts...)
	payments := billingapp.NewPaymentService(repos, opts...)
	payments.SetIdempotencyStore(store)
	formatter, err := export.NewMoneyFormatter("USD", "en-US")
	require.NoError(t, err)
	invoices.SetDocumentPipeline(printing.NewInvoicePrinter(nil, formatter, printing.Issuer{Name: "Studio"}), nil)

	reader := sdkmetric.NewManualReader()
	meters := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = meters.Shutdown(t.Context()) })

	engine, err := NewEngine(EngineConfig{
		ServiceName: "freelance-test",
		CORS:        middleware.DefaultCORSConfig(),
		MaxBodySize: 1 << 20,
		RateLimiter: limiter,
		Meter:       meters.Meter("freelance/http"),
		Logger:      log,
	}, Handlers{
		Clients:  handler.NewClientHandler(billingapp.NewClientService(repos, opts...), log),
		Projects: handler.NewProjectHandler(billingapp.NewProjectService(repos, opts...), log),
		Invoices: handler.NewInvoiceHandler(invoices, log),
		Payments: handler.NewPaymentHandler(payments, log),
		Reports:  handler.NewReportHandler(billingapp.NewReportService(repos, opts...), log),
		System:   handler.NewSystemHandler("freelance", "test", db, activity, log).WithDeliveryStats(delivery.Stats),
	})
	require.NoError(t, err)
	return &apiClient{t: t, engine: engine, metrics: reader}
}

func (a *apiClient) do(method, path string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

type idOnly struct {
	ID uuid.UUID `json:"id"`
}

type invoiceBody struct {
	InvoiceID   uuid.UUID       `json:"invoice_id"`
	Number      string          `json:"number"`
	Total       decimal.Decimal `json:"total"`
	Balance     decimal.Decimal `json:"balance"`
	Status      string          `json:"status"`
	DaysOverdue int             `json:"days_overdue"`
}

type paymentResultBody struct {
	Payment struct {
		ID          uuid.UUID       `json:"id"`
		Number      string          `json:"number"`
		Unallocated decimal.Decimal `json:"unallocated"`
	} `json:"payment"`
	Invoices []invoiceBody `json:"invoices"`
	Replayed bool          `json:"replayed"`
}

// seedInvoice creates a client with an issued 500.00 invoice from March 1st
func (a *apiClient) seedInvoice() (clientID uuid.UUID, inv invoiceBody) {
	t := a.t
	w, env := a.do(http.MethodPost, "/api/v1/clients", map[string]any{
		"name": "Jane Doe", "email": "jane@example.com", "company": "Acme",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	clientID = decode[idOnly](t, env).ID

	w, env = a.do(http.MethodPost, "/api/v1/projects", map[string]any{
		"client_id": clientID, "name": "Website", "hourly_rate": "100",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	projectID := decode[idOnly](t, env).ID

	w, _ = a.do(http.MethodPost, "/api/v1/projects/"+projectID.String()+"/hours", map[string]any{
		"description": "Build", "hours": "5",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = a.do(http.MethodPost, "/api/v1/invoices/from-project", map[string]any{
		"project_id": projectID, "issue_date": "2026-03-01", "issue": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return clientID, decode[invoiceBody](t, env)
}

func TestAPI_HealthAndRequestID(t *testing.T) {
	api := newAPI(t, nil)

	w, _ := api.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w, _ = api.do(http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ready")

	w, env := api.do(http.MethodGet, "/api/v1/system/info", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	info := decode[handler.SystemInfoResponse](t, env)
	assert.Equal(t, "freelance", info.Name)
	require.NotNil(t, info.Events)
	assert.Zero(t, info.Events.Processed)

	var rm metricdata.ResourceMetrics
	require.NoError(t, api.metrics.Collect(t.Context(), &rm))
	routes := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "http.server.requests" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				route, _ := dp.Attributes.Value("http.route")
				routes[route.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{"/health": 1, "/ready": 1, "/api/v1/system/info": 1}, routes)
}

func TestAPI_ClientErrors(t *testing.T) {
	api := newAPI(t, nil)
	api.seedInvoice()

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		w, env := api.do(http.MethodPost, "/api/v1/clients", map[string]any{
			"name": "Other", "email": "JANE@example.com",
		}, middleware.RequestIDHeader, "req-dup")
		assert.Equal(t, http.StatusConflict, w.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, dto.ErrCodeAlreadyExists, env.Error.Code)
		assert.Equal(t, "req-dup", env.Error.RequestID)
	})

	t.Run("binding errors list fields", func(t *testing.T) {
		w, env := api.do(http.MethodPost, "/api/v1/clients", map[string]any{"name": "X", "email": "nope"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
		require.Len(t, env.Error.Details, 1)
		assert.Equal(t, "email", env.Error.Details[0].Field)
	})

	t.Run("malformed id", func(t *testing.T) {
		w, env := api.do(http.MethodGet, "/api/v1/clients/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeBadRequest, env.Error.Code)
	})

	t.Run("unknown client", func(t *testing.T) {
		w, env := api.do(http.MethodGet, "/api/v1/clients/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeNotFound, env.Error.Code)
	})

	t.Run("client with unpaid invoice cannot be deleted", func(t *testing.T) {
		w, env := api.do(http.MethodGet, "/api/v1/clients?page_size=10", nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, env.Meta)
		assert.Equal(t, int64(1), env.Meta.Total)
		id := decode[[]idOnly](t, env)[0].ID

		w, env = api.do(http.MethodDelete, "/api/v1/clients/"+id.String(), nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidState, env.Error.Code)
	})
}

func TestAPI_InvoiceAndPaymentFlow(t *testing.T) {
	api := newAPI(t, nil)
	clientID, inv := api.seedInvoice()

	assert.Equal(t, "INV-20260301-0001", inv.Number)
	assert.Equal(t, "OVERDUE", inv.Status)
	assert.True(t, inv.Total.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, 15, inv.DaysOverdue)

	payment := map[string]any{
		"client_id":   clientID,
		"amount":      "200",
		"method":      "BANK_TRANSFER",
		"received_on": "2026-04-14",
		"allocations": []map[string]any{{"invoice_id": inv.InvoiceID, "amount": "200"}},
	}

	t.Run("over-allocation is rejected", func(t *testing.T) {
		over := map[string]any{
			"client_id":   clientID,
			"amount":      "600",
			"method":      "CASH",
			"allocations": []map[string]any{{"invoice_id": inv.InvoiceID, "amount": "600"}},
		}
		w, env := api.do(http.MethodPost, "/api/v1/payments", over)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeOverAllocation, env.Error.Code)
	})

	var paymentID uuid.UUID
	t.Run("record and replay", func(t *testing.T) {
		w, env := api.do(http.MethodPost, "/api/v1/payments", payment, middleware.IdempotencyKeyHeader, "pay-once")
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		first := decode[paymentResultBody](t, env)
		assert.Equal(t, "PAY-20260414-0001", first.Payment.Number)
		require.Len(t, first.Invoices, 1)
		assert.Equal(t, "PARTIALLY_PAID", first.Invoices[0].Status)
		paymentID = first.Payment.ID

		w, env = api.do(http.MethodPost, "/api/v1/payments", payment, middleware.IdempotencyKeyHeader, "pay-once")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "true", w.Header().Get("Idempotent-Replayed"))
		replay := decode[paymentResultBody](t, env)
		assert.Equal(t, paymentID, replay.Payment.ID)
		assert.True(t, replay.Replayed)
	})

	t.Run("invoice reflects the payment", func(t *testing.T) {
		w, env := api.do(http.MethodGet, "/api/v1/invoices/"+inv.InvoiceID.String(), nil)
		require.Equal(t, http.StatusOK, w.Code)
		got := decode[invoiceBody](t, env)
		assert.True(t, got.Balance.Equal(decimal.NewFromInt(300)), got.Balance.String())

		w, env = api.do(http.MethodGet, "/api/v1/invoices/number/INV-20260301-0001", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, inv.InvoiceID, decode[invoiceBody](t, env).InvoiceID)

		w, env = api.do(http.MethodGet, "/api/v1/invoices/"+inv.InvoiceID.String()+"/payments", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[[]idOnly](t, env), 1)
	})

	t.Run("paid invoices cannot be voided", func(t *testing.T) {
		w, env := api.do(http.MethodPost, "/api/v1/invoices/"+inv.InvoiceID.String()+"/void", map[string]any{"reason": "mistake"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidState, env.Error.Code)
	})

	t.Run("reports", func(t *testing.T) {
		w, env := api.do(http.MethodGet, "/api/v1/reports", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var report struct {
			InvoiceCount int             `json:"invoice_count"`
			Billed       decimal.Decimal `json:"billed"`
			Collected    decimal.Decimal `json:"collected"`
			Outstanding  decimal.Decimal `json:"outstanding"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &report))
		assert.Equal(t, 1, report.InvoiceCount)
		assert.True(t, report.Collected.Equal(decimal.NewFromInt(200)))
		assert.True(t, report.Outstanding.Equal(decimal.NewFromInt(300)))

		w, _ = api.do(http.MethodGet, "/api/v1/reports/monthly?year=2026&month=13", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w, _ = api.do(http.MethodGet, "/api/v1/reports/outstanding?client_id="+clientID.String(), nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w, env = api.do(http.MethodGet, "/api/v1/reports?client_id=bogus", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeBadRequest, env.Error.Code)
	})

	t.Run("reverse then void", func(t *testing.T) {
		w, _ := api.do(http.MethodPost, "/api/v1/payments/"+paymentID.String()+"/reverse", map[string]any{"reason": "bounced"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w, env := api.do(http.MethodPost, "/api/v1/invoices/"+inv.InvoiceID.String()+"/void", map[string]any{"reason": "mistake"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "VOID", decode[invoiceBody](t, env).Status)
	})

	t.Run("activity lists recent events", func(t *testing.T) {
		w, env := api.do(http.MethodGet, "/api/v1/system/activity?limit=2", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var entries []event.Activity
		require.NoError(t, json.Unmarshal(env.Data, &entries))
		require.Len(t, entries, 2)
		assert.Equal(t, "InvoiceVoided", entries[0].EventType)

		w, _ = api.do(http.MethodGet, "/api/v1/system/activity?limit=0", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAPI_Documents(t *testing.T) {
	api := newAPI(t, nil)
	_, inv := api.seedInvoice()

	t.Run("csv export", func(t *testing.T) {
		w, _ := api.do(http.MethodGet, "/api/v1/clients/export", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "clients.csv")
		assert.True(t, strings.HasPrefix(w.Body.String(), "ID,Name,Email"), w.Body.String())

		w, _ = api.do(http.MethodGet, "/api/v1/reports/export", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Level,Client,Project,Invoices,Billed,Collected,Outstanding")
	})

	t.Run("html", func(t *testing.T) {
		w, _ := api.do(http.MethodGet, "/api/v1/invoices/"+inv.InvoiceID.String()+"/html", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), inv.Number)
		assert.Contains(t, w.Body.String(), "Studio")
	})

	t.Run("pdf without renderer", func(t *testing.T) {
		w, env := api.do(http.MethodGet, "/api/v1/invoices/"+inv.InvoiceID.String()+"/pdf", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidState, env.Error.Code)
	})
}

func TestAPI_RateLimitsWrites(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, time.Minute)
	defer limiter.Stop()
	api := newAPI(t, limiter)

	w, _ := api.do(http.MethodPost, "/api/v1/clients", map[string]any{"name": "A", "email": "a@example.com"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w, env := api.do(http.MethodPost, "/api/v1/clients", map[string]any{"name": "B", "email": "b@example.com"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, dto.ErrCodeRateLimited, env.Error.Code)

	w, _ = api.do(http.MethodGet, "/api/v1/clients", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

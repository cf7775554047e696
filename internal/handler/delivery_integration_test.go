package handler

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/delivery-router/internal/domain"
	"github.com/kursadbilgin/delivery-router/internal/repository"
	"github.com/kursadbilgin/delivery-router/internal/transport"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type stubDeliveryService struct {
	sendFn func(ctx context.Context, tenantID string, req domain.DeliveryRequest) (domain.DeliveryResult, error)
}

func (s *stubDeliveryService) Send(ctx context.Context, tenantID string, req domain.DeliveryRequest) (domain.DeliveryResult, error) {
	return s.sendFn(ctx, tenantID, req)
}

type stubBroadcastRunner struct {
	broadcastFn func(ctx context.Context, tenantID string, recipients []string, body string) (*domain.BroadcastOutcome, error)
}

func (s *stubBroadcastRunner) Broadcast(ctx context.Context, tenantID string, recipients []string, body string) (*domain.BroadcastOutcome, error) {
	return s.broadcastFn(ctx, tenantID, recipients, body)
}

type stubVerifier struct {
	verifyFn func(ctx context.Context, tenantID string) (domain.VerificationState, error)
}

func (s *stubVerifier) Verify(ctx context.Context, tenantID string) (domain.VerificationState, error) {
	return s.verifyFn(ctx, tenantID)
}

type stubLogRepo struct {
	listFn func(ctx context.Context, params repository.ListParams) ([]domain.DeliveryLogEntry, int64, error)
}

func (s *stubLogRepo) Create(ctx context.Context, entry *domain.DeliveryLogEntry) error {
	return nil
}

func (s *stubLogRepo) List(ctx context.Context, params repository.ListParams) ([]domain.DeliveryLogEntry, int64, error) {
	if s.listFn == nil {
		return nil, 0, nil
	}
	return s.listFn(ctx, params)
}

type stubTenantRepo struct {
	getFn    func(ctx context.Context, tenantID string) (*domain.TenantConfig, error)
	upsertFn func(ctx context.Context, cfg *domain.TenantConfig) error
}

func (s *stubTenantRepo) Get(ctx context.Context, tenantID string) (*domain.TenantConfig, error) {
	return s.getFn(ctx, tenantID)
}

func (s *stubTenantRepo) Upsert(ctx context.Context, cfg *domain.TenantConfig) error {
	if s.upsertFn == nil {
		return nil
	}
	return s.upsertFn(ctx, cfg)
}

func (s *stubTenantRepo) Update(ctx context.Context, tenantID string, update domain.TenantConfigUpdate) error {
	return nil
}

func (s *stubTenantRepo) SetVerified(ctx context.Context, tenantID string, verifiedAt time.Time) error {
	return nil
}

func newDeliveryTestApp(t *testing.T, deliveries DeliveryService, broadcasts BroadcastRunner, verifier Verifier, logs repository.DeliveryLogRepository) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})

	if err := RegisterDeliveryRoutes(app, deliveries, broadcasts, verifier, logs); err != nil {
		t.Fatalf("RegisterDeliveryRoutes() error = %v", err)
	}

	return app
}

func okDeliveryService() *stubDeliveryService {
	return &stubDeliveryService{
		sendFn: func(ctx context.Context, tenantID string, req domain.DeliveryRequest) (domain.DeliveryResult, error) {
			return domain.DeliveryResult{ConfirmedSent: true, Method: "meta_graph", ProviderMessageID: "wamid.1"}, nil
		},
	}
}

func noopBroadcastRunner() *stubBroadcastRunner {
	return &stubBroadcastRunner{
		broadcastFn: func(ctx context.Context, tenantID string, recipients []string, body string) (*domain.BroadcastOutcome, error) {
			return &domain.BroadcastOutcome{}, nil
		},
	}
}

func noopVerifier() *stubVerifier {
	return &stubVerifier{
		verifyFn: func(ctx context.Context, tenantID string) (domain.VerificationState, error) {
			return domain.VerificationUnconfigured, nil
		},
	}
}

func TestDeliveryIntegration_SendMessage(t *testing.T) {
	t.Parallel()

	svc := &stubDeliveryService{
		sendFn: func(ctx context.Context, tenantID string, req domain.DeliveryRequest) (domain.DeliveryResult, error) {
			if tenantID != "tenant-1" {
				t.Errorf("tenantID = %q, want tenant-1", tenantID)
			}
			if err := req.Validate(); err != nil {
				return domain.DeliveryResult{}, err
			}
			if req.Media.ImageURL != "https://cdn.example/receipt.png" {
				t.Errorf("ImageURL = %q, want the request value", req.Media.ImageURL)
			}
			return domain.DeliveryResult{ConfirmedSent: true, Method: "meta_graph", ProviderMessageID: "wamid.42"}, nil
		},
	}
	app := newDeliveryTestApp(t, svc, noopBroadcastRunner(), noopVerifier(), &stubLogRepo{})

	body := `{"to":"9876543210","message":"your order shipped","imageUrl":"https://cdn.example/receipt.png","orderId":"order-42"}`
	resp, respBody := performRequest(t, app, http.MethodPost, "/v1/tenants/tenant-1/messages", body)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(respBody))
	}

	var result map[string]any
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if result["success"] != true {
		t.Errorf("success = %v, want true", result["success"])
	}
	if result["confirmedSent"] != true {
		t.Errorf("confirmedSent = %v, want true", result["confirmedSent"])
	}
	if result["providerMessageId"] != "wamid.42" {
		t.Errorf("providerMessageId = %v, want wamid.42", result["providerMessageId"])
	}

	missingRecipient := `{"to":"","message":"hello"}`
	resp, _ = performRequest(t, app, http.MethodPost, "/v1/tenants/tenant-1/messages", missingRecipient)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for missing recipient", resp.StatusCode)
	}
}

func TestDeliveryIntegration_SendMessageDegradedResultIsStill200(t *testing.T) {
	t.Parallel()

	svc := &stubDeliveryService{
		sendFn: func(ctx context.Context, tenantID string, req domain.DeliveryRequest) (domain.DeliveryResult, error) {
			return domain.DeliveryResult{
				ArtifactProduced: true,
				Method:           domain.MethodDirectFallback,
				ErrorCode:        domain.ErrorCodePermissionDenied,
				ErrorMessage:     "application does not have permission",
				FallbackLink:     "https://wa.me/919876543210?text=hello",
			}, nil
		},
	}
	app := newDeliveryTestApp(t, svc, noopBroadcastRunner(), noopVerifier(), &stubLogRepo{})

	resp, respBody := performRequest(t, app, http.MethodPost, "/v1/tenants/tenant-1/messages", `{"to":"9876543210","message":"hello"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(respBody))
	}

	var result map[string]any
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if result["success"] != false {
		t.Errorf("success = %v, want false", result["success"])
	}
	if result["errorCode"] != "PERMISSION_DENIED" {
		t.Errorf("errorCode = %v, want PERMISSION_DENIED", result["errorCode"])
	}
	if result["fallbackLink"] == "" || result["fallbackLink"] == nil {
		t.Error("fallbackLink must be present on a degraded result")
	}
}

func TestDeliveryIntegration_Broadcast(t *testing.T) {
	t.Parallel()

	runner := &stubBroadcastRunner{
		broadcastFn: func(ctx context.Context, tenantID string, recipients []string, body string) (*domain.BroadcastOutcome, error) {
			if len(recipients) != 2 {
				t.Errorf("len(recipients) = %d, want 2", len(recipients))
			}
			return &domain.BroadcastOutcome{
				Results: []domain.DeliveryResult{
					{ConfirmedSent: true, Method: "meta_graph"},
					{ArtifactProduced: true, Method: domain.MethodDirectFallback, ErrorMessage: "backend down", FallbackLink: "https://wa.me/919876543211?text=hi"},
				},
				Total:      2,
				Successful: 1,
				Confirmed:  1,
			}, nil
		},
	}
	app := newDeliveryTestApp(t, okDeliveryService(), runner, noopVerifier(), &stubLogRepo{})

	body := `{"recipients":["9876543210","9876543211"],"message":"hi"}`
	resp, respBody := performRequest(t, app, http.MethodPost, "/v1/tenants/tenant-1/broadcasts", body)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(respBody))
	}

	var result broadcastResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if result.Total != 2 || result.Successful != 1 || result.Confirmed != 1 {
		t.Errorf("tallies = %d/%d/%d, want 2/1/1", result.Total, result.Successful, result.Confirmed)
	}
	if len(result.Results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(result.Results))
	}
	if result.Results[1].Method != domain.MethodDirectFallback {
		t.Errorf("results[1].method = %q, want %q", result.Results[1].Method, domain.MethodDirectFallback)
	}
}

func TestDeliveryIntegration_BroadcastValidation(t *testing.T) {
	t.Parallel()

	runner := &stubBroadcastRunner{
		broadcastFn: func(ctx context.Context, tenantID string, recipients []string, body string) (*domain.BroadcastOutcome, error) {
			return nil, fmt.Errorf("%w: at least one recipient is required", domain.ErrValidation)
		},
	}
	app := newDeliveryTestApp(t, okDeliveryService(), runner, noopVerifier(), &stubLogRepo{})

	resp, _ := performRequest(t, app, http.MethodPost, "/v1/tenants/tenant-1/broadcasts", `{"recipients":[],"message":"hi"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDeliveryIntegration_Verify(t *testing.T) {
	t.Parallel()

	verifier := &stubVerifier{
		verifyFn: func(ctx context.Context, tenantID string) (domain.VerificationState, error) {
			return domain.VerificationVerified, nil
		},
	}
	app := newDeliveryTestApp(t, okDeliveryService(), noopBroadcastRunner(), verifier, &stubLogRepo{})

	resp, respBody := performRequest(t, app, http.MethodPost, "/v1/tenants/tenant-1/verify", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(respBody))
	}

	var result verifyResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if result.State != "VERIFIED" {
		t.Errorf("state = %q, want VERIFIED", result.State)
	}
}

func TestDeliveryIntegration_VerifyStoreDownIs503(t *testing.T) {
	t.Parallel()

	verifier := &stubVerifier{
		verifyFn: func(ctx context.Context, tenantID string) (domain.VerificationState, error) {
			return "", fmt.Errorf("%w: dial tcp: connection refused", domain.ErrConfigUnavailable)
		},
	}
	app := newDeliveryTestApp(t, okDeliveryService(), noopBroadcastRunner(), verifier, &stubLogRepo{})

	resp, _ := performRequest(t, app, http.MethodPost, "/v1/tenants/tenant-1/verify", "")
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestDeliveryIntegration_ListDeliveries(t *testing.T) {
	t.Parallel()

	createdAt, _ := time.Parse(time.RFC3339, "2026-08-01T10:00:00Z")
	logs := &stubLogRepo{
		listFn: func(ctx context.Context, params repository.ListParams) ([]domain.DeliveryLogEntry, int64, error) {
			if params.TenantID != "tenant-1" {
				t.Errorf("TenantID = %q, want tenant-1", params.TenantID)
			}
			if params.Status == nil || *params.Status != domain.DeliveryStatusFailed {
				t.Error("status filter must be parsed from the query")
			}
			return []domain.DeliveryLogEntry{
				{
					ID:        "log-1",
					TenantID:  "tenant-1",
					To:        "+919876543210",
					Message:   "hello",
					Status:    domain.DeliveryStatusFailed,
					Method:    domain.MethodDirectFallback,
					CreatedAt: createdAt,
				},
			}, 1, nil
		},
	}
	app := newDeliveryTestApp(t, okDeliveryService(), noopBroadcastRunner(), noopVerifier(), logs)

	resp, respBody := performRequest(t, app, http.MethodGet, "/v1/tenants/tenant-1/deliveries?status=failed&page=1&pageSize=10", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(respBody))
	}

	var result listDeliveriesResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if result.Meta.Total != 1 {
		t.Errorf("total = %d, want 1", result.Meta.Total)
	}
	if len(result.Data) != 1 || result.Data[0].ID != "log-1" {
		t.Fatalf("unexpected data: %+v", result.Data)
	}

	resp, _ = performRequest(t, app, http.MethodGet, "/v1/tenants/tenant-1/deliveries?status=bogus", "")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unknown status", resp.StatusCode)
	}

	resp, _ = performRequest(t, app, http.MethodGet, "/v1/tenants/tenant-1/deliveries?pageSize=9999", "")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for oversized page", resp.StatusCode)
	}
}

func TestTenantIntegration_GetAndPutConfig(t *testing.T) {
	t.Parallel()

	stored := map[string]*domain.TenantConfig{}
	repo := &stubTenantRepo{
		getFn: func(ctx context.Context, tenantID string) (*domain.TenantConfig, error) {
			cfg, ok := stored[tenantID]
			if !ok {
				return nil, fmt.Errorf("%w: tenant %q has no delivery configuration", domain.ErrNotConfigured, tenantID)
			}
			return cfg, nil
		},
		upsertFn: func(ctx context.Context, cfg *domain.TenantConfig) error {
			stored[cfg.TenantID] = cfg
			return nil
		},
	}

	app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
	if err := RegisterTenantRoutes(app, repo); err != nil {
		t.Fatalf("RegisterTenantRoutes() error = %v", err)
	}

	resp, _ := performRequest(t, app, http.MethodGet, "/v1/tenants/tenant-1/config", "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404 before any config exists", resp.StatusCode)
	}

	putBody := `{"enabled":true,"provider":"meta_graph","phoneNumber":"9876543210","metaGraph":{"accessToken":"secret-token-abcd","phoneNumberId":"555"}}`
	resp, respBody := performRequest(t, app, http.MethodPut, "/v1/tenants/tenant-1/config", putBody)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(respBody))
	}

	var result tenantConfigResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if result.Provider != "meta_graph" {
		t.Errorf("provider = %q, want meta_graph", result.Provider)
	}
	if result.MetaGraph == nil {
		t.Fatal("metaGraph credentials missing from response")
	}
	if strings.Contains(result.MetaGraph.AccessToken, "secret-token") {
		t.Errorf("access token echoed back unmasked: %q", result.MetaGraph.AccessToken)
	}
	if !strings.HasSuffix(result.MetaGraph.AccessToken, "abcd") {
		t.Errorf("masked token = %q, want the last four characters kept", result.MetaGraph.AccessToken)
	}

	resp, _ = performRequest(t, app, http.MethodPut, "/v1/tenants/tenant-1/config", `{"provider":"carrier_pigeon"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unknown provider", resp.StatusCode)
	}
}

func TestHealthIntegration_LivezAndReadyz(t *testing.T) {
	t.Parallel()

	t.Run("livez returns 200", func(t *testing.T) {
		t.Parallel()

		app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
		RegisterHealthRoutes(app, sql.OpenDB(stubConnector{}), newStubRedisClient(nil))

		resp, body := performRequest(t, app, http.MethodGet, "/livez", "")
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
		}
	})

	t.Run("readyz returns 200 when dependencies healthy", func(t *testing.T) {
		t.Parallel()

		sqlDB := sql.OpenDB(stubConnector{})
		t.Cleanup(func() { _ = sqlDB.Close() })

		rdb := newStubRedisClient(nil)
		t.Cleanup(func() { _ = rdb.Close() })

		app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
		RegisterHealthRoutes(app, sqlDB, rdb)

		resp, body := performRequest(t, app, http.MethodGet, "/readyz", "")
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
		}
	})

	t.Run("readyz returns 503 when dependencies down", func(t *testing.T) {
		t.Parallel()

		sqlDB := sql.OpenDB(stubConnector{pingErr: errors.New("postgres down")})
		t.Cleanup(func() { _ = sqlDB.Close() })

		rdb := newStubRedisClient(errors.New("redis down"))
		t.Cleanup(func() { _ = rdb.Close() })

		app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
		RegisterHealthRoutes(app, sqlDB, rdb)

		resp, body := performRequest(t, app, http.MethodGet, "/readyz", "")
		if resp.StatusCode != fiber.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503, body=%s", resp.StatusCode, string(body))
		}
	})
}

func performRequest(t *testing.T, app *fiber.App, method string, path string, body string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	_ = resp.Body.Close()

	return resp, respBody
}

type stubConnector struct {
	pingErr error
}

func (c stubConnector) Connect(context.Context) (driver.Conn, error) {
	return stubConn(c), nil
}

func (c stubConnector) Driver() driver.Driver {
	return stubDriver(c)
}

type stubDriver struct {
	pingErr error
}

func (d stubDriver) Open(string) (driver.Conn, error) {
	return stubConn(d), nil
}

type stubConn struct {
	pingErr error
}

func (c stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (c stubConn) Close() error                        { return nil }
func (c stubConn) Begin() (driver.Tx, error)           { return nil, errors.New("not implemented") }
func (c stubConn) Ping(context.Context) error          { return c.pingErr }

type stubRedisHook struct {
	pingErr error
}

func (h stubRedisHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h stubRedisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if strings.EqualFold(cmd.Name(), "ping") {
			if h.pingErr != nil {
				cmd.SetErr(h.pingErr)
				return h.pingErr
			}
			cmd.SetErr(nil)
			return nil
		}
		cmd.SetErr(nil)
		return nil
	}
}

func (h stubRedisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			cmd.SetErr(nil)
		}
		return nil
	}
}

func newStubRedisClient(pingErr error) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         "127.0.0.1:6379",
		DialTimeout:  time.Millisecond,
		ReadTimeout:  time.Millisecond,
		WriteTimeout: time.Millisecond,
	})
	rdb.AddHook(stubRedisHook{pingErr: pingErr})
	return rdb
}

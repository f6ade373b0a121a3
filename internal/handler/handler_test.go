package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/pierogicoin/presale-service/internal/middleware"
	"github.com/pierogicoin/presale-service/internal/model"
	"github.com/pierogicoin/presale-service/internal/repository"
	"github.com/pierogicoin/presale-service/internal/service"
)

type stubService struct {
	intakeResult *service.IntakeResult
	intakeErr    error

	confirmErr     error
	confirmTrusted *bool

	totals *model.PresaleTotals
}

func (s *stubService) InitiatePurchase(ctx context.Context, req service.PurchaseRequest) (*service.IntakeResult, error) {
	return s.intakeResult, s.intakeErr
}

func (s *stubService) ConfirmPayment(ctx context.Context, purchaseID, signature string, trusted bool) error {
	s.confirmTrusted = &trusted
	return s.confirmErr
}

func (s *stubService) Totals(ctx context.Context) *model.PresaleTotals {
	return s.totals
}

type stubWorker struct {
	summary model.BatchSummary
	err     error
}

func (s *stubWorker) RunBatch(ctx context.Context) (model.BatchSummary, error) {
	return s.summary, s.err
}

func newTestHandler(t *testing.T, svc Service, worker BatchRunner) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	webhookAuth := middleware.NewBearerAuth("hook-secret")
	workerAuth := middleware.NewBearerAuth("worker-secret")

	return NewHandler(svc, worker, logger, webhookAuth, workerAuth)
}

func TestInitiatePurchase_Success(t *testing.T) {
	svc := &stubService{
		intakeResult: &service.IntakeResult{
			PurchaseID:      "7c1bb9e3-8f6d-4c60-b32f-0b9a57ce31ab",
			TreasuryAddress: "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T",
			USDPerCrypto:    142.55,
		},
	}
	h := newTestHandler(t, svc, &stubWorker{})

	body, _ := json.Marshal(purchaseRequest{
		BuyerAddress:          "buyer",
		AmountUSD:             1000,
		PaymentCryptoCurrency: "SOL",
		PRGDeliveryAddress:    "delivery",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/presale/purchase", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.InitiatePurchase(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp purchaseResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.TransactionID != svc.intakeResult.PurchaseID {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.RecipientAddress != svc.intakeResult.TreasuryAddress {
		t.Fatalf("recipient = %q", resp.RecipientAddress)
	}
}

func TestInitiatePurchase_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "validation error",
			err:        &service.ValidationError{Fields: []string{"amountUSD"}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid address",
			err:        service.ErrInvalidAddress,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "presale closed",
			err:        service.ErrPresaleClosed,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "rate limited",
			err:        service.ErrRateLimited,
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "price feed down",
			err:        service.ErrExternalService,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{intakeErr: tt.err}
			h := newTestHandler(t, svc, &stubWorker{})

			body, _ := json.Marshal(purchaseRequest{BuyerAddress: "b", AmountUSD: 10, PaymentCryptoCurrency: "SOL", PRGDeliveryAddress: "d"})
			req := httptest.NewRequest(http.MethodPost, "/api/presale/purchase", bytes.NewReader(body))
			rec := httptest.NewRecorder()

			h.InitiatePurchase(rec, req)

			res := rec.Result()
			if res.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.wantStatus)
			}

			var resp errorResponse
			if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Error == "" {
				t.Fatalf("error payload must not be empty")
			}
		})
	}
}

func TestConfirm_ClientPathIsUntrusted(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc, &stubWorker{})

	body, _ := json.Marshal(confirmRequest{TransactionID: "id", Signature: "sig"})
	req := httptest.NewRequest(http.MethodPost, "/api/presale/confirm", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.ConfirmPayment(rec, req)

	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Result().StatusCode)
	}
	if svc.confirmTrusted == nil || *svc.confirmTrusted {
		t.Fatalf("client path must call ConfirmPayment with trusted=false")
	}
}

func TestConfirm_MissingFields(t *testing.T) {
	h := newTestHandler(t, &stubService{}, &stubWorker{})

	body, _ := json.Marshal(confirmRequest{TransactionID: "id"})
	req := httptest.NewRequest(http.MethodPost, "/api/presale/confirm", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.ConfirmPayment(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Result().StatusCode)
	}
}

func TestConfirm_NotFoundPurchase(t *testing.T) {
	svc := &stubService{confirmErr: repository.ErrPurchaseNotFound}
	h := newTestHandler(t, svc, &stubWorker{})

	body, _ := json.Marshal(confirmRequest{TransactionID: "missing", Signature: "sig"})
	req := httptest.NewRequest(http.MethodPost, "/api/presale/confirm", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.ConfirmPayment(rec, req)

	if rec.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Result().StatusCode)
	}
}

func TestWebhook_RequiresSecret(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc, &stubWorker{})
	router := h.SetupRouter()

	body, _ := json.Marshal(confirmRequest{TransactionID: "id", Signature: "sig"})

	req := httptest.NewRequest(http.MethodPost, "/api/presale/webhook", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without secret = %d, want 401", rec.Result().StatusCode)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/presale/webhook", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer hook-secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("status with secret = %d, want 200", rec.Result().StatusCode)
	}
	if svc.confirmTrusted == nil || !*svc.confirmTrusted {
		t.Fatalf("webhook path must call ConfirmPayment with trusted=true")
	}
}

func TestDistribute_RequiresSecretAndReturnsSummary(t *testing.T) {
	worker := &stubWorker{summary: model.BatchSummary{Processed: 3, OK: 2, Fail: 1}}
	h := newTestHandler(t, &stubService{}, worker)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/presale/distribute", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without secret = %d, want 401", rec.Result().StatusCode)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/presale/distribute", nil)
	req.Header.Set("Authorization", "Bearer worker-secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}

	var summary model.BatchSummary
	if err := json.NewDecoder(res.Body).Decode(&summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.Processed != 3 || summary.OK != 2 || summary.Fail != 1 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestStats_AlwaysOK(t *testing.T) {
	svc := &stubService{
		totals: &model.PresaleTotals{USDRaised: 123456.78, SoldTokens: 900000, TransactionCount: 42},
	}
	h := newTestHandler(t, svc, &stubWorker{})

	req := httptest.NewRequest(http.MethodGet, "/api/presale/stats", nil)
	rec := httptest.NewRecorder()

	h.Stats(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var totals model.PresaleTotals
	if err := json.NewDecoder(res.Body).Decode(&totals); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if totals.USDRaised != 123456.78 || totals.TransactionCount != 42 {
		t.Fatalf("totals = %+v", totals)
	}
}

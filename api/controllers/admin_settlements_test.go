package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hyeonlabs/guideport-backend/internal/settlement"
	"github.com/hyeonlabs/guideport-backend/pkg/db/models"
	"github.com/hyeonlabs/guideport-backend/pkg/enums"
	pkgerrors "github.com/hyeonlabs/guideport-backend/pkg/errors"
	"github.com/hyeonlabs/guideport-backend/pkg/period"
)

type stubSettlementService struct {
	preview      *settlement.PreviewResult
	lockResult   *settlement.LockResult
	resumeResult *settlement.ResumeResult
	run          *settlement.RunDetail
	runs         []models.SettlementRun
	guideRow     *models.GuideSettlement
	guideRows    []models.GuideSettlement
	csv          []byte
	err          error
	lastLock     settlement.LockInput
	lastMarkPaid settlement.MarkPaidInput
}

func (s *stubSettlementService) Preview(ctx context.Context, input settlement.PreviewInput) (*settlement.PreviewResult, error) {
	return s.preview, s.err
}

func (s *stubSettlementService) Lock(ctx context.Context, input settlement.LockInput) (*settlement.LockResult, error) {
	s.lastLock = input
	return s.lockResult, s.err
}

func (s *stubSettlementService) Resume(ctx context.Context, input settlement.ResumeInput) (*settlement.ResumeResult, error) {
	return s.resumeResult, s.err
}

func (s *stubSettlementService) MarkPaid(ctx context.Context, input settlement.MarkPaidInput) (*models.GuideSettlement, error) {
	s.lastMarkPaid = input
	return s.guideRow, s.err
}

func (s *stubSettlementService) GetRun(ctx context.Context, key period.Key) (*settlement.RunDetail, error) {
	return s.run, s.err
}

func (s *stubSettlementService) ListRuns(ctx context.Context, limit int) ([]models.SettlementRun, error) {
	return s.runs, s.err
}

func (s *stubSettlementService) GetGuideSettlement(ctx context.Context, key period.Key, guideID uuid.UUID) (*models.GuideSettlement, error) {
	return s.guideRow, s.err
}

func (s *stubSettlementService) ListGuideSettlements(ctx context.Context, guideID uuid.UUID, limit int) ([]models.GuideSettlement, error) {
	return s.guideRows, s.err
}

func (s *stubSettlementService) ExportCSV(ctx context.Context, key period.Key) ([]byte, error) {
	return s.csv, s.err
}

func withURLParams(req *http.Request, params map[string]string) *http.Request {
	routeCtx := chi.NewRouteContext()
	for key, value := range params {
		routeCtx.URLParams.Add(key, value)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestSettlementLockReturnsRunAndGuides(t *testing.T) {
	t.Parallel()

	actorID := uuid.New()
	now := time.Now().UTC()
	svc := &stubSettlementService{lockResult: &settlement.LockResult{
		Run: &models.SettlementRun{
			PeriodKey:     "2026-07",
			CommissionPct: 10,
			TotalGross:    600,
			TotalFee:      60,
			TotalNet:      540,
			OrderCount:    3,
			GuideCount:    2,
			LockedBy:      actorID,
			LockedAt:      now,
			CompletedAt:   &now,
		},
		Guides: []models.GuideSettlement{{PeriodKey: "2026-07", GuideID: uuid.New()}},
	}}

	handler := SettlementLock(svc, nil)
	req := authedRequest(http.MethodPost, "/api/admin/v1/settlements/2026-07/lock",
		`{"commission_pct":12}`, actorID, enums.UserRoleAdmin)
	req = withURLParams(req, map[string]string{"period": "2026-07"})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastLock.PeriodKey != period.Key("2026-07") {
		t.Fatalf("unexpected period %s", svc.lastLock.PeriodKey)
	}
	if svc.lastLock.CommissionPct == nil || *svc.lastLock.CommissionPct != 12 {
		t.Fatalf("expected commission override 12, got %v", svc.lastLock.CommissionPct)
	}
	if svc.lastLock.ActorID != actorID {
		t.Fatalf("unexpected actor %s", svc.lastLock.ActorID)
	}
}

func TestSettlementLockRejectsMalformedPeriod(t *testing.T) {
	t.Parallel()

	handler := SettlementLock(&stubSettlementService{}, nil)
	req := authedRequest(http.MethodPost, "/api/admin/v1/settlements/2026-7/lock", "", uuid.New(), enums.UserRoleAdmin)
	req = withURLParams(req, map[string]string{"period": "2026-7"})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestSettlementLockSurfacesAlreadyLocked(t *testing.T) {
	t.Parallel()

	svc := &stubSettlementService{err: pkgerrors.New(pkgerrors.CodeAlreadyLocked, "period 2026-07 is already locked")}
	handler := SettlementLock(svc, nil)
	req := authedRequest(http.MethodPost, "/api/admin/v1/settlements/2026-07/lock", "", uuid.New(), enums.UserRoleAdmin)
	req = withURLParams(req, map[string]string{"period": "2026-07"})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeAlreadyLocked) {
		t.Fatalf("unexpected error code %s", envelope.Error.Code)
	}
}

func TestSettlementPreviewPassesCommissionOverride(t *testing.T) {
	t.Parallel()

	svc := &stubSettlementService{preview: &settlement.PreviewResult{PeriodKey: "2026-07", CommissionPct: 15}}
	handler := SettlementPreview(svc, nil)
	req := authedRequest(http.MethodGet, "/api/admin/v1/settlements/2026-07/preview?commission_pct=15", "", uuid.New(), enums.UserRoleAdmin)
	req = withURLParams(req, map[string]string{"period": "2026-07"})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data settlement.PreviewResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.CommissionPct != 15 {
		t.Fatalf("unexpected commission pct %d", envelope.Data.CommissionPct)
	}
}

func TestSettlementResumeReportsSettledCount(t *testing.T) {
	t.Parallel()

	svc := &stubSettlementService{resumeResult: &settlement.ResumeResult{
		Run:           &models.SettlementRun{PeriodKey: "2026-07"},
		OrdersSettled: 17,
	}}
	handler := SettlementResume(svc, nil)
	req := authedRequest(http.MethodPost, "/api/admin/v1/settlements/2026-07/resume", "", uuid.New(), enums.UserRoleAdmin)
	req = withURLParams(req, map[string]string{"period": "2026-07"})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data struct {
			OrdersSettled int `json:"orders_settled"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.OrdersSettled != 17 {
		t.Fatalf("unexpected settled count %d", envelope.Data.OrdersSettled)
	}
}

func TestSettlementExportSetsCSVHeaders(t *testing.T) {
	t.Parallel()

	svc := &stubSettlementService{csv: []byte("period,guide_id\n2026-07,abc\n")}
	handler := SettlementExport(svc, nil)
	req := authedRequest(http.MethodGet, "/api/admin/v1/settlements/2026-07/export", "", uuid.New(), enums.UserRoleAdmin)
	req = withURLParams(req, map[string]string{"period": "2026-07"})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got := resp.Header().Get("Content-Type"); got != "text/csv; charset=utf-8" {
		t.Fatalf("unexpected content type %q", got)
	}
	if got := resp.Header().Get("Content-Disposition"); got != `attachment; filename="settlement-2026-07.csv"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	if resp.Body.String() != "period,guide_id\n2026-07,abc\n" {
		t.Fatalf("unexpected body %q", resp.Body.String())
	}
}

func TestSettlementMarkPaidValidatesBody(t *testing.T) {
	t.Parallel()

	handler := SettlementMarkPaid(&stubSettlementService{}, nil)
	req := authedRequest(http.MethodPost, "/api/admin/v1/settlements/2026-07/guides/"+uuid.NewString()+"/payout",
		`{"reference":"TX-1"}`, uuid.New(), enums.UserRoleAdmin)
	req = withURLParams(req, map[string]string{"period": "2026-07", "guideId": uuid.NewString()})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestSettlementMarkPaidForwardsInput(t *testing.T) {
	t.Parallel()

	guideID := uuid.New()
	actorID := uuid.New()
	svc := &stubSettlementService{guideRow: &models.GuideSettlement{
		PeriodKey:    "2026-07",
		GuideID:      guideID,
		PayoutStatus: enums.PayoutStatusPaid,
	}}
	handler := SettlementMarkPaid(svc, nil)
	req := authedRequest(http.MethodPost, "/api/admin/v1/settlements/2026-07/guides/"+guideID.String()+"/payout",
		`{"method":"bank_transfer","reference":"KB-20260705-001"}`, actorID, enums.UserRoleAdmin)
	req = withURLParams(req, map[string]string{"period": "2026-07", "guideId": guideID.String()})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastMarkPaid.GuideID != guideID {
		t.Fatalf("unexpected guide id %s", svc.lastMarkPaid.GuideID)
	}
	if svc.lastMarkPaid.Method != "bank_transfer" {
		t.Fatalf("unexpected method %q", svc.lastMarkPaid.Method)
	}
	if svc.lastMarkPaid.Reference != "KB-20260705-001" {
		t.Fatalf("unexpected reference %q", svc.lastMarkPaid.Reference)
	}
	if svc.lastMarkPaid.ActorID != actorID {
		t.Fatalf("unexpected actor %s", svc.lastMarkPaid.ActorID)
	}
}

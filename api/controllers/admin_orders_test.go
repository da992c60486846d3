package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/hyeonlabs/guideport-backend/internal/orders"
	"github.com/hyeonlabs/guideport-backend/pkg/db/models"
	"github.com/hyeonlabs/guideport-backend/pkg/enums"
	pkgerrors "github.com/hyeonlabs/guideport-backend/pkg/errors"
)

func TestAdminCreateOrderAllowsMissingGuide(t *testing.T) {
	t.Parallel()

	travelerID := uuid.New()
	svc := &stubOrderService{order: &models.Order{ID: uuid.New(), Status: enums.OrderStatusPaid}}
	handler := AdminCreateOrder(svc, nil)

	body := `{"traveler_id":"` + travelerID.String() + `","tour_title":"Jeju Hiking","amount":95000}`
	req := authedRequest(http.MethodPost, "/api/admin/v1/orders", body, uuid.New(), enums.UserRoleAdmin)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastCreate.TravelerID != travelerID {
		t.Fatalf("unexpected traveler %s", svc.lastCreate.TravelerID)
	}
	if svc.lastCreate.GuideID != uuid.Nil {
		t.Fatalf("expected nil guide, got %s", svc.lastCreate.GuideID)
	}
}

func TestAdminCreateOrderRejectsBadMonth(t *testing.T) {
	t.Parallel()

	handler := AdminCreateOrder(&stubOrderService{}, nil)
	body := `{"traveler_id":"` + uuid.NewString() + `","tour_title":"Jeju Hiking","amount":95000,"settlement_month":"2026/07"}`
	req := authedRequest(http.MethodPost, "/api/admin/v1/orders", body, uuid.New(), enums.UserRoleAdmin)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminListOrdersNormalizesLegacyStatus(t *testing.T) {
	t.Parallel()

	svc := &stubOrderService{adminList: &orders.AdminOrderList{}}
	handler := AdminListOrders(svc, nil)
	req := authedRequest(http.MethodGet, "/api/admin/v1/orders?status=pending", "", uuid.New(), enums.UserRoleAdmin)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastAdminFilters.Status == nil || *svc.lastAdminFilters.Status != enums.OrderStatusPaid {
		t.Fatalf("expected legacy pending to normalize to paid, got %v", svc.lastAdminFilters.Status)
	}
}

func TestAdminListOrdersRejectsUnknownStatus(t *testing.T) {
	t.Parallel()

	handler := AdminListOrders(&stubOrderService{adminList: &orders.AdminOrderList{}}, nil)
	req := authedRequest(http.MethodGet, "/api/admin/v1/orders?status=shipped", "", uuid.New(), enums.UserRoleAdmin)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminConfirmOrderAcceptsOptionalMonth(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	svc := &stubOrderService{order: &models.Order{ID: orderID, Status: enums.OrderStatusConfirmed}}
	handler := AdminConfirmOrder(svc, nil)

	req := authedRequest(http.MethodPost, "/api/admin/v1/orders/"+orderID.String()+"/confirm",
		`{"settlement_month":"2026-07"}`, uuid.New(), enums.UserRoleAdmin)
	req = withURLParams(req, map[string]string{"orderId": orderID.String()})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data models.Order `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Status != enums.OrderStatusConfirmed {
		t.Fatalf("unexpected status %s", envelope.Data.Status)
	}
}

func TestAdminConfirmOrderRejectsBadID(t *testing.T) {
	t.Parallel()

	handler := AdminConfirmOrder(&stubOrderService{}, nil)
	req := authedRequest(http.MethodPost, "/api/admin/v1/orders/not-a-uuid/confirm", "", uuid.New(), enums.UserRoleAdmin)
	req = withURLParams(req, map[string]string{"orderId": "not-a-uuid"})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminCancelOrderSurfacesStateConflict(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	svc := &stubOrderService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "order is already settled")}
	handler := AdminCancelOrder(svc, nil)

	req := authedRequest(http.MethodPost, "/api/admin/v1/orders/"+orderID.String()+"/cancel", "", uuid.New(), enums.UserRoleAdmin)
	req = withURLParams(req, map[string]string{"orderId": orderID.String()})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

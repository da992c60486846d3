package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hyeonlabs/guideport-backend/api/responses"
	"github.com/hyeonlabs/guideport-backend/api/validators"
	"github.com/hyeonlabs/guideport-backend/internal/orders"
	"github.com/hyeonlabs/guideport-backend/pkg/enums"
	pkgerrors "github.com/hyeonlabs/guideport-backend/pkg/errors"
	"github.com/hyeonlabs/guideport-backend/pkg/logger"
	"github.com/hyeonlabs/guideport-backend/pkg/pagination"
	"github.com/hyeonlabs/guideport-backend/pkg/period"
)

// adminCreateOrderRequest backfills an order on behalf of a traveler,
// typically during imports from the old spreadsheet flow.
type adminCreateOrderRequest struct {
	TravelerID      string `json:"traveler_id" validate:"required,uuid"`
	GuideID         string `json:"guide_id" validate:"omitempty,uuid"`
	LegacyOwnerUID  string `json:"ownerUid" validate:"omitempty,uuid"`
	TourTitle       string `json:"tour_title" validate:"required,min=1,max=200"`
	Amount          int64  `json:"amount" validate:"required,min=1"`
	Currency        string `json:"currency" validate:"omitempty,oneof=KRW USD"`
	SettlementMonth string `json:"settlement_month" validate:"omitempty"`
}

type confirmOrderRequest struct {
	SettlementMonth string `json:"settlement_month" validate:"omitempty"`
}

// AdminCreateOrder records a paid order for any traveler. Unlike checkout,
// a missing guide is tolerated here so legacy rows can be imported and
// repaired before confirmation.
func AdminCreateOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req adminCreateOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		travelerID, err := uuid.Parse(req.TravelerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid traveler id"))
			return
		}

		input := orders.CreateOrderInput{
			TravelerID: travelerID,
			TourTitle:  validators.SanitizeString(req.TourTitle, 200),
			Amount:     req.Amount,
			Currency:   enums.Currency(req.Currency),
		}
		rawGuide := req.GuideID
		if rawGuide == "" {
			rawGuide = req.LegacyOwnerUID
		}
		if rawGuide != "" {
			guideID, err := uuid.Parse(rawGuide)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid guide id"))
				return
			}
			input.GuideID = guideID
		}
		if req.SettlementMonth != "" {
			key, err := period.Parse(req.SettlementMonth)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid settlement month"))
				return
			}
			input.SettlementMonth = &key
		}

		order, err := svc.CreateOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// AdminListOrders pages through orders with optional status, period, guide
// and date filters. The legacy "pending" status is accepted as paid.
func AdminListOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		filters := orders.AdminOrderFilters{}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.NormalizeOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown order status"))
				return
			}
			filters.Status = &status
		}
		if key, err := validators.ParseQueryPeriod(r, "period"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		} else if key != nil {
			filters.PeriodKey = key
		}
		if guideID, err := validators.ParseQueryUUID(r, "guide_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		} else if guideID != nil {
			filters.GuideID = guideID
		}
		if from, err := parseQueryTime(r, "date_from"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		} else if from != nil {
			filters.DateFrom = from
		}
		if to, err := parseQueryTime(r, "date_to"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		} else if to != nil {
			filters.DateTo = to
		}

		list, err := svc.ListAdminOrders(r.Context(), params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AdminOrderDetail returns a single order by id.
func AdminOrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// AdminConfirmOrder flips a paid order to confirmed and assigns its
// settlement month.
func AdminConfirmOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, role, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := orders.ConfirmOrderInput{
			OrderID:   orderID,
			ActorID:   actorID,
			ActorRole: role,
		}
		if r.ContentLength != 0 {
			var req confirmOrderRequest
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if req.SettlementMonth != "" {
				key, err := period.Parse(req.SettlementMonth)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid settlement month"))
					return
				}
				input.SettlementMonth = &key
			}
		}

		order, err := svc.ConfirmOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// AdminCancelOrder voids a paid or confirmed order.
func AdminCancelOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, role, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err = svc.CancelOrder(r.Context(), orders.CancelOrderInput{
			OrderID:   orderID,
			ActorID:   actorID,
			ActorRole: role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "canceled"})
	}
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}

func parseQueryTime(r *http.Request, key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be RFC3339").WithDetails(map[string]any{"field": key})
	}
	return &value, nil
}

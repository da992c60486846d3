package controllers

import (
	"net/http"
	"strings"

	"github.com/hyeonlabs/guideport-backend/api/responses"
	"github.com/hyeonlabs/guideport-backend/api/validators"
	"github.com/hyeonlabs/guideport-backend/internal/orders"
	"github.com/hyeonlabs/guideport-backend/internal/settlement"
	"github.com/hyeonlabs/guideport-backend/pkg/enums"
	pkgerrors "github.com/hyeonlabs/guideport-backend/pkg/errors"
	"github.com/hyeonlabs/guideport-backend/pkg/logger"
	"github.com/hyeonlabs/guideport-backend/pkg/pagination"
)

// GuideOrders lists the authenticated guide's order mirrors. The actor id
// doubles as the guide id; guides only ever see their own rows.
func GuideOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guideID, _, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		filters := orders.GuideOrderFilters{}
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

		list, err := svc.ListGuideOrders(r.Context(), guideID, params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// GuideSettlements lists the authenticated guide's settlement rows, newest
// period first.
func GuideSettlements(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guideID, _, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 12, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListGuideSettlements(r.Context(), guideID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"settlements": rows})
	}
}

// GuideSettlementForPeriod returns the guide's settlement row for one period.
func GuideSettlementForPeriod(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guideID, _, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		key, err := parsePeriodParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.GetGuideSettlement(r.Context(), key, guideID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

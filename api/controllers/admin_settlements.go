package controllers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hyeonlabs/guideport-backend/api/responses"
	"github.com/hyeonlabs/guideport-backend/api/validators"
	"github.com/hyeonlabs/guideport-backend/internal/settlement"
	pkgerrors "github.com/hyeonlabs/guideport-backend/pkg/errors"
	"github.com/hyeonlabs/guideport-backend/pkg/logger"
	"github.com/hyeonlabs/guideport-backend/pkg/period"
)

type lockSettlementRequest struct {
	CommissionPct *int `json:"commission_pct" validate:"omitempty,min=0,max=100"`
}

type markPaidRequest struct {
	Method    string `json:"method" validate:"required,min=1,max=50"`
	Reference string `json:"reference" validate:"omitempty,max=200"`
}

// SettlementPreview computes what a lock would commit without writing.
func SettlementPreview(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := parsePeriodParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := settlement.PreviewInput{PeriodKey: key}
		if pct, err := validators.ParseQueryInt(r, "commission_pct", -1, 0, 100); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		} else if pct >= 0 {
			input.CommissionPct = &pct
		}

		result, err := svc.Preview(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// SettlementLock snapshots a period: aggregates confirmed orders, writes the
// run and guide rows, and flips the orders to settled.
func SettlementLock(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := parsePeriodParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, role, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := settlement.LockInput{
			PeriodKey: key,
			ActorID:   actorID,
			ActorRole: role,
		}
		if r.ContentLength != 0 {
			var req lockSettlementRequest
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.CommissionPct = req.CommissionPct
		}

		result, err := svc.Lock(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"run":    result.Run,
			"guides": result.Guides,
		})
	}
}

// SettlementResume finishes a run whose commit stopped partway through.
func SettlementResume(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := parsePeriodParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, role, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Resume(r.Context(), settlement.ResumeInput{
			PeriodKey: key,
			ActorID:   actorID,
			ActorRole: role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"run":            result.Run,
			"orders_settled": result.OrdersSettled,
		})
	}
}

// SettlementRunDetail returns a run and its guide rows.
func SettlementRunDetail(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := parsePeriodParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.GetRun(r.Context(), key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"run":    detail.Run,
			"guides": detail.Guides,
		})
	}
}

// SettlementRuns lists settlement runs, newest period first.
func SettlementRuns(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 24, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		runs, err := svc.ListRuns(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"runs": runs})
	}
}

// SettlementExport streams the locked period as CSV.
func SettlementExport(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := parsePeriodParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		data, err := svc.ExportCSV(r.Context(), key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCSV(w, fmt.Sprintf("settlement-%s.csv", key), data)
	}
}

// SettlementMarkPaid records a payout against one guide's settlement row.
func SettlementMarkPaid(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := parsePeriodParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		guideID, err := parseGuideIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, role, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req markPaidRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.MarkPaid(r.Context(), settlement.MarkPaidInput{
			PeriodKey: key,
			GuideID:   guideID,
			Method:    validators.SanitizeString(req.Method, 50),
			Reference: validators.SanitizeString(req.Reference, 200),
			ActorID:   actorID,
			ActorRole: role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

func parsePeriodParam(r *http.Request) (period.Key, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "period"))
	if raw == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "period is required")
	}
	key, err := period.Parse(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid period")
	}
	return key, nil
}

func parseGuideIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "guideId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "guide id is required")
	}
	guideID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid guide id")
	}
	return guideID, nil
}

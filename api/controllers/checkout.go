package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/hyeonlabs/guideport-backend/api/responses"
	"github.com/hyeonlabs/guideport-backend/api/validators"
	"github.com/hyeonlabs/guideport-backend/internal/orders"
	"github.com/hyeonlabs/guideport-backend/pkg/enums"
	pkgerrors "github.com/hyeonlabs/guideport-backend/pkg/errors"
	"github.com/hyeonlabs/guideport-backend/pkg/logger"
	"github.com/hyeonlabs/guideport-backend/pkg/period"
)

// checkoutRequest accepts the legacy ownerUid alias for guide_id; new
// clients send guide_id.
type checkoutRequest struct {
	GuideID         string `json:"guide_id" validate:"omitempty,uuid"`
	LegacyOwnerUID  string `json:"ownerUid" validate:"omitempty,uuid"`
	TourTitle       string `json:"tour_title" validate:"required,min=1,max=200"`
	Amount          int64  `json:"amount" validate:"required,min=1"`
	Currency        string `json:"currency" validate:"omitempty,oneof=KRW USD"`
	SettlementMonth string `json:"settlement_month" validate:"omitempty"`
}

// Checkout records a paid booking for the authenticated traveler.
func Checkout(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		travelerID, _, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rawGuide := req.GuideID
		if rawGuide == "" {
			rawGuide = req.LegacyOwnerUID
		}
		if rawGuide == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "guide_id is required"))
			return
		}
		guideID, err := uuid.Parse(rawGuide)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid guide id"))
			return
		}

		input := orders.CreateOrderInput{
			TravelerID: travelerID,
			GuideID:    guideID,
			TourTitle:  validators.SanitizeString(req.TourTitle, 200),
			Amount:     req.Amount,
			Currency:   enums.Currency(req.Currency),
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

package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/hyeonlabs/guideport-backend/api/middleware"
	pkgerrors "github.com/hyeonlabs/guideport-backend/pkg/errors"
)

// actorFromRequest resolves the authenticated actor id and role.
func actorFromRequest(r *http.Request) (uuid.UUID, string, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	actorID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid actor identity")
	}
	return actorID, middleware.RoleFromContext(r.Context()), nil
}

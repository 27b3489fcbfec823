package controllers

import (
	"net/http"
	"strings"

	"github.com/toolyard/toolyard-backend/api/responses"
	"github.com/toolyard/toolyard-backend/api/validators"
	"github.com/toolyard/toolyard-backend/pkg/logger"
)

// PublicValidateBody mirrors the signup fields the marketing site checks
// before it submits a real registration.
type PublicValidateBody struct {
	FirstName string `json:"first_name" validate:"required,min=1,max=64"`
	LastName  string `json:"last_name" validate:"required,min=1,max=64"`
	Email     string `json:"email" validate:"required,email"`
}

// PublicValidate runs the register endpoint's field validation without
// touching any state, so signup forms can surface errors before submit.
func PublicValidate(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body PublicValidateBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"first_name": validators.SanitizeString(body.FirstName, 64),
			"last_name":  validators.SanitizeString(body.LastName, 64),
			"email":      strings.ToLower(strings.TrimSpace(body.Email)),
			"valid":      true,
		})
	}
}

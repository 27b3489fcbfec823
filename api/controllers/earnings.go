package controllers

import (
	"net/http"

	"github.com/toolyard/toolyard-backend/api/responses"
	"github.com/toolyard/toolyard-backend/internal/ledger"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
	"github.com/toolyard/toolyard-backend/pkg/logger"
)

// GetEarnings returns the creator's balance snapshot. Creators without a
// single sale get zeros, not a 404.
func GetEarnings(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		uid, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.EarningsSummary(r.Context(), uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

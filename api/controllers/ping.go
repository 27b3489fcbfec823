package controllers

import (
	"net/http"

	"github.com/toolyard/toolyard-backend/api/middleware"
	"github.com/toolyard/toolyard-backend/api/responses"
)

// ping answers with the route scope so smoke tests can tell which guard
// chain they came through. The user id appears once auth has run.
func ping(scope string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": scope, "status": "ok"}
		if user := middleware.UserIDFromContext(r.Context()); user != "" {
			payload["user_id"] = user
		}
		responses.WriteSuccess(w, payload)
	}
}

func PublicPing() http.HandlerFunc  { return ping("public") }
func PrivatePing() http.HandlerFunc { return ping("private") }
func AdminPing() http.HandlerFunc   { return ping("admin") }

// Package identity resolves the acting user for survey edits.
//
// Authentication happens upstream; the gateway forwards the authenticated
// subject in the X-User-ID header.
package identity

import (
	"fmt"
	"log/slog"
	"net/http"

	id "amsf/pkg/domain"
	"amsf/pkg/requestcontext"
)

const HeaderUserID = "X-User-ID"

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireUser rejects requests without a valid user header.
func RequireUser(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			raw := r.Header.Get(HeaderUserID)
			if raw == "" {
				logger.WarnContext(ctx, "unauthorized access - missing user",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing X-User-ID header")
				return
			}
			userID, err := id.ParseUserID(raw)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid user",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid X-User-ID header")
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithUserID(ctx, userID)))
		})
	}
}

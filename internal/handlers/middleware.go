package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sparkride/apiserver/internal/services"
	"github.com/sparkride/apiserver/internal/store"
	"github.com/sparkride/apiserver/types"
)

// RequireAdmin builds middleware that re-fetches the caller's user record
// and requires the admin role at call time, so a stale token cannot keep
// admin access after a demotion.
func RequireAdmin(userService *services.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := userIDFromContext(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			user, err := userService.GetByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					writeError(w, http.StatusUnauthorized, "unauthorized")
					return
				}
				writeError(w, http.StatusInternalServerError, "failed to load user")
				return
			}

			if !strings.EqualFold(user.Role, types.RoleAdmin) {
				writeError(w, http.StatusForbidden, "admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

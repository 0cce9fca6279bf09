package auth

import (
	"encoding/json"
	"net/http"
)

// LogoutHandler acknowledges a logout. Tokens are stateless, the client
// drops its copy.
func LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
		})
	}
}

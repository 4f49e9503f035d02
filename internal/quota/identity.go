package quota

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// clientCookie identifies a client when no proxy header carries an IP.
const clientCookie = "convocate_client"

// ClientID derives a best-effort anti-abuse identity for the request:
// forwarded-IP headers first, then a generated cookie. This is not a
// secure identity, just a stable counter key.
func ClientID(w http.ResponseWriter, r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First hop is the original client.
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return "ip:" + ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return "ip:" + ip
	}

	if c, err := r.Cookie(clientCookie); err == nil && c.Value != "" {
		return "cookie:" + c.Value
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     clientCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return "cookie:" + id
}

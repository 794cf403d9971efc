package api

import (
	"net/http"

	"github.com/BTreeMap/CardDesk/internal/models"
	"github.com/google/uuid"
)

// SessionCookieName is the cookie carrying the browser session ID.
const SessionCookieName = "carddesk_session"

// webSessionKey namespaces browser sessions apart from channel sessions ("whatsapp:<phone>").
func webSessionKey(id string) string {
	return string(models.ChannelWeb) + ":" + id
}

// sessionID returns the session ID from the request cookie, or "" when the cookie is
// missing or not a UUID.
func sessionID(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return ""
	}
	return id.String()
}

// ensureSessionID returns the request's session ID, issuing a new cookie when there is none.
func (s *Server) ensureSessionID(w http.ResponseWriter, r *http.Request) string {
	if id := sessionID(r); id != "" {
		return id
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

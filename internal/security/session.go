package security

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ClientCookieName identifies a browser across hub and game pages
const ClientCookieName = "cvquest_client"

// ClientCookieTTL keeps a client's origin storage reachable for a school year
const ClientCookieTTL = 365 * 24 * time.Hour

// GenerateClientID creates a new random client id
func GenerateClientID() string {
	return uuid.NewString()
}

// ValidClientID reports whether id looks like an id from GenerateClientID
func ValidClientID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

// IsSecureRequest determines if the request is over HTTPS, directly or
// behind a reverse proxy.
func IsSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "https" {
		return true
	}
	return r.URL.Scheme == "https"
}

// CreateClientCookie creates the client cookie. The Secure flag follows the
// request scheme.
func CreateClientCookie(r *http.Request, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     ClientCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   IsSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	}
}

// CreateDeleteCookie expires the client cookie
func CreateDeleteCookie(r *http.Request) *http.Cookie {
	return &http.Cookie{
		Name:     ClientCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   IsSecureRequest(r),
	}
}

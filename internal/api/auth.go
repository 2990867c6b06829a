package api

import (
	"crypto/subtle"
	"net/http"
)

// Credentials protect the event routes with basic auth. The zero value
// disables authentication.
type Credentials struct {
	User string
	Pass string
}

// Enabled reports whether both user and password are set.
func (c Credentials) Enabled() bool {
	return c.User != "" && c.Pass != ""
}

func (c Credentials) valid(r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	return secureCompare(user, c.User) && secureCompare(pass, c.Pass)
}

// secureCompare performs constant-time string comparison.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Require wraps a handler with basic auth when credentials are enabled.
func (c Credentials) Require(h http.HandlerFunc) http.HandlerFunc {
	if !c.Enabled() {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !c.valid(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Espresso Line"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}

package auth

import (
	"net/http"
)

// ErrorWriter renders an identity failure in a protocol's native envelope.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware creates HTTP middleware that resolves and binds the request
// identity before calling next. Requests that fail resolution never reach
// next. The binding is released when next returns, on every path.
func Middleware(res *Resolver, creds CredentialOptions, writeErr ErrorWriter, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			h := RequestHeaders(r)
			token, _ := Credential(h, r.URL.Query(), creds)

			ctx, release, err := res.Resolve(r.Context(), h, token)
			if err != nil {
				writeErr(w, r, err)
				return
			}
			defer release()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

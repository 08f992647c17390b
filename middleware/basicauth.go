package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/advdv/bdispatch"
	"golang.org/x/crypto/bcrypt"
)

// userKey holds the authenticated user name for [User].
var userKey = bdispatch.NewKey[string]("user")

// BasicAuth rejects requests without valid credentials with a 401 and a challenge for 'realm'. Users
// maps names to bcrypt hashes. The name of an authenticated user is available through [User].
func BasicAuth(realm string, users map[string][]byte) bdispatch.Middleware {
	challenge := "Basic realm=" + strconv.Quote(realm) + ", charset=\"UTF-8\""

	return func(next bdispatch.Handler) bdispatch.Handler {
		return bdispatch.HandlerFunc(func(ctx context.Context, w bdispatch.ResponseWriter, in *bdispatch.Input) error {
			name, pass, ok := in.Request.BasicAuth()
			if ok {
				hash, known := users[name]
				if !known {
					// unknown users still pay for a comparison
					hash = unknownUserHash
				}

				if bcrypt.CompareHashAndPassword(hash, []byte(pass)) == nil && known {
					bdispatch.SetLocal(in, userKey, name)
					return next.ServeBHTTP(ctx, w, in)
				}
			}

			w.Header().Set("WWW-Authenticate", challenge)
			w.WriteHeader(http.StatusUnauthorized)

			return nil
		})
	}
}

var unknownUserHash, _ = bcrypt.GenerateFromPassword([]byte("unknown"), bcrypt.MinCost)

// User extracts the name of the user that was authenticated by [BasicAuth].
func User() bdispatch.Extractor[string] {
	return bdispatch.Local(userKey)
}

// HashPassword hashes a password for use with [BasicAuth].
func HashPassword(pass string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
}

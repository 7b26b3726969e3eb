// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"encoding/json"
	"net/http"
)

// Middleware resolves the requested API version, stores it in the request
// context and echoes it in the response. An unusable version is a 400.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		version, err := Resolve(r.Header.Get(Header))
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]string{"code": "BAD_REQUEST", "message": err.Error()},
			})
			return
		}

		w.Header().Set(Header, version)
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), version)))
	})
}

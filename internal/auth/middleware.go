package auth

import (
	"encoding/json"
	"net/http"
)

// WriteUnauthorized writes the JSON 401 body used across the API.
func WriteUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="carbontracker"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": "Sign in to continue",
		"retry": false,
	})
}

package oauth

import (
	"net/http"

	dto "github.com/dropDatabas3/portero/internal/http/dto/oauth"
	"github.com/dropDatabas3/portero/internal/http/helpers"
)

// writeOAuthError escribe {error, error_description} sin cache.
func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	if status == http.StatusUnauthorized && code == "invalid_client" {
		w.Header().Set("WWW-Authenticate", `Basic realm="token"`)
	}
	helpers.WriteJSON(w, status, dto.OAuthError{Error: code, Description: description})
}

func writeTokenResponse(w http.ResponseWriter, resp any) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	helpers.WriteJSON(w, http.StatusOK, resp)
}

package oauth

// RevokeResponse es la respuesta de POST /api/v1/auth/revoke.
type RevokeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// OAuthError es el cuerpo de error RFC 6749 §5.2.
type OAuthError struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

package errors

import (
	"encoding/json"
	"net/http"
)

// WriteError serializa err como {error, message, detail?, ...Fields}.
// Errores que no son AppError se reportan como 500 sin exponer la causa.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	body := make(map[string]any, 3+len(appErr.Fields))
	for k, v := range appErr.Fields {
		body[k] = v
	}
	body["error"] = appErr.Code
	body["message"] = appErr.Message
	if appErr.Detail != "" {
		body["detail"] = appErr.Detail
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(body)
}

package helpers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

// ErrUnsupportedBody indica un Content-Type que no es JSON ni form.
var ErrUnsupportedBody = errors.New("unsupported content type")

// WriteJSON escribe una respuesta JSON estándar.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// BodyParams lee un objeto JSON plano o un form urlencoded como mapa de
// strings. En JSON, los arrays de strings se unen con espacios (scope) y
// los números/bools se formatean. Body vacío → mapa vacío.
func BodyParams(r *http.Request) (map[string]string, error) {
	out := map[string]string{}
	if r.Body == nil {
		return out, nil
	}

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		for k := range r.PostForm {
			out[k] = strings.TrimSpace(r.PostForm.Get(k))
		}
		return out, nil
	case "application/json", "":
		var raw map[string]any
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("decode json: %w", err)
		}
		for k, v := range raw {
			if s, ok := stringify(v); ok {
				out[k] = strings.TrimSpace(s)
			}
		}
		return out, nil
	default:
		return nil, ErrUnsupportedBody
	}
}

func stringify(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " "), true
	default:
		return "", false
	}
}

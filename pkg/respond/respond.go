// Package respond writes JSON responses with a uniform error envelope.
package respond

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the envelope of every non-2xx response.
type ErrorBody struct {
	Error string `json:"error"`
}

// JSON marshals data before writing any header. A value that cannot be
// encoded is answered with 500.
func JSON(w http.ResponseWriter, r *http.Request, code int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		code = http.StatusInternalServerError
		body, _ = json.Marshal(ErrorBody{Error: "internal error"})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(append(body, '\n'))
}

func Error(w http.ResponseWriter, r *http.Request, code int, message string) {
	JSON(w, r, code, ErrorBody{Error: message})
}

// Message writes {"message": text}.
func Message(w http.ResponseWriter, r *http.Request, code int, text string) {
	JSON(w, r, code, map[string]string{"message": text})
}

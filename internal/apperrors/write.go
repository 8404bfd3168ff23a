package apperrors

import (
	"encoding/json"
	"net/http"
)

type body struct {
	Success bool              `json:"success"`
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Write sends e as the JSON error envelope.
func Write(w http.ResponseWriter, e *AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(body{Code: e.Code, Message: e.Message, Fields: e.Fields})
}

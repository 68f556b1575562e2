package handlers

import (
	"encoding/json"
	"net/http"

	"giffer/internal/logging"
	"giffer/internal/reconciler"
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Encoding errors are only logged; the status line has already been sent.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, map[string]string{"error": message})
}

// writeResult writes res with the status code matching its kind.
func writeResult(w http.ResponseWriter, res reconciler.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resultStatus(res))
	writeJSON(w, res)
}

// resultStatus maps a Result to an HTTP status. A persistence warning is
// still a success.
func resultStatus(res reconciler.Result) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.Kind {
	case reconciler.KindValidation:
		return http.StatusBadRequest
	case reconciler.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSONBody decodes a bounded request body into v.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

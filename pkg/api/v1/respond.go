// Package v1 contains the gateway's REST route handlers.
package v1

import (
	"encoding/json"
	"net/http"

	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/errors"
	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/logger"
)

// maxRequestBodySize bounds inbound JSON bodies (1 MB).
const maxRequestBodySize = 1 << 20

// errorResponse is the JSON shape of every failure answered by the API.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}

// writeError maps a normalized error to its HTTP status. Anything that is
// not a normalized error is a bug in the core and answers 500 without
// detail.
func writeError(w http.ResponseWriter, err error) {
	status := errors.StatusCode(err)
	resp := errorResponse{Error: "internal error"}
	if e, ok := err.(*errors.Error); ok {
		resp.Error = e.Message
		resp.Kind = e.Type
	} else {
		logger.Errorf("Unnormalized error reached the boundary: %v", err)
	}
	writeJSON(w, status, resp)
}

// decodeJSON decodes a bounded request body into v.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBodySize)).Decode(v); err != nil {
		return errors.NewInvalidInputError("invalid request body", err)
	}
	return nil
}

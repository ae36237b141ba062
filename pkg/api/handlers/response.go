package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// Response wraps every API response.
type Response struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"status":"error","error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

func newResponse(status string, data interface{}, errMsg string) Response {
	return Response{Status: status, Timestamp: time.Now().UTC(), Data: data, Error: errMsg}
}

func healthyResponse(data interface{}) Response { return newResponse("healthy", data, "") }

func unhealthyResponse(errMsg string) Response { return newResponse("unhealthy", nil, errMsg) }

func okResponse(data interface{}) Response { return newResponse("ok", data, "") }

func errorResponse(errMsg string) Response { return newResponse("error", nil, errMsg) }

package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"RequestCriteria/internal/criteria"
	"RequestCriteria/internal/logger"
	"RequestCriteria/internal/request"
)

// maxBody bounds request bodies; criteria payloads are small.
const maxBody = 1 << 20

// statusFor maps compile and execution errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, criteria.ErrUnknownEntity):
		return http.StatusNotFound
	case errors.Is(err, criteria.ErrInvalidValue),
		errors.Is(err, criteria.ErrUnknownCondition),
		errors.Is(err, criteria.ErrMalformedRange):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// decode reads the request body, answering 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, endpoint string) (request.Request, bool) {
	req, err := request.Decode(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		logger.Warn("invalid_json", logger.Fields{
			"endpoint": endpoint,
			"error":    err.Error(),
		})
		writeError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return request.Request{}, false
	}
	logger.Info("request", logger.Fields{
		"endpoint": endpoint,
		"model":    req.Model,
	})
	return req, true
}

func fail(w http.ResponseWriter, endpoint string, err error) {
	status := statusFor(err)
	fields := logger.Fields{"endpoint": endpoint, "status": status, "error": err.Error()}
	if status >= http.StatusInternalServerError {
		logger.Error("resolver_error", fields)
	} else {
		logger.Warn("request_rejected", fields)
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("write_response_failed", logger.Fields{"error": err.Error()})
	}
}

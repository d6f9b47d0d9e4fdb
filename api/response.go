package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ghost-mesh/ghost-node/types"
)

func statusOf(err error) int {
	switch {
	case errors.Is(err, types.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, types.ErrNameTaken):
		return http.StatusConflict
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, types.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, types.ErrStorageBusy),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.Is(err, types.ErrPeerUnreachable):
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}

func writeJSON(writer http.ResponseWriter, status int, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Errorf("cannot encode response: %s", err)
		writer.WriteHeader(http.StatusInternalServerError)
		return
	}

	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	_, _ = writer.Write(raw)
}

func writeError(writer http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Warnf("%s %s: %s", r.Method, r.URL.Path, err)
	} else {
		log.Debugf("%s %s: %s", r.Method, r.URL.Path, err)
	}

	writeJSON(writer, status, map[string]string{"error": err.Error()})
}

func decode(writer http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(writer, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: bad request body: %v", types.ErrValidation, err)
	}

	return nil
}

package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/gftj/tipjar-go/errs"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError translates a classified error into a response. The safe
// message is all that leaves the process; raw provider text stays in
// the logs. A user rejection is not an error to the caller, it maps
// to a quiet cancelled status.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	classified := errs.Classify(err)

	if classified.Kind == errs.UserRejected {
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
		return
	}

	s.logger.Warn("request failed",
		zap.String("kind", classified.Kind.String()),
		zap.Error(err))

	writeJSON(w, statusFor(classified.Kind), errorResponse{
		Error: classified.Message,
		Kind:  classified.Kind.String(),
	})
}

func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.RateLimited:
		return http.StatusTooManyRequests
	case errs.BackendUnhealthy:
		return http.StatusServiceUnavailable
	case errs.Timeout:
		return http.StatusGatewayTimeout
	case errs.InsufficientFunds:
		return http.StatusPaymentRequired
	case errs.WrongNetwork:
		return http.StatusConflict
	case errs.Reverted:
		return http.StatusBadRequest
	case errs.NotConfigured:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

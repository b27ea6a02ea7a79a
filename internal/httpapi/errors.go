package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/0xthrpw/remand/internal/engine"
)

// errorResponse is the JSON error envelope. Code carries the protocol's
// stable error name so clients can branch without parsing messages.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusForCode maps protocol error codes onto HTTP statuses.
func statusForCode(code engine.Code) int {
	switch code {
	case engine.CodeOfferNotFound:
		return http.StatusNotFound
	case engine.CodeOwnerMismatch, engine.CodeNotOfferOwner, engine.CodeNotOfferTarget:
		return http.StatusForbidden
	case engine.CodeNonZeroAcceptedAt, engine.CodeTermTooShort,
		engine.CodeAskIsCollateral, engine.CodeInvalidAsset:
		return http.StatusBadRequest
	case engine.CodeOfferAlreadyAccepted, engine.CodeOfferNotAccepted,
		engine.CodeCantRescindAcceptedOffer, engine.CodeOfferExpired, engine.CodeIncompleteTerm:
		return http.StatusConflict
	case engine.CodeInsufficientBalanceOrAllowance, engine.CodeNotOwnerOrUnauthorized:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeEngineError renders an engine failure. Non-protocol errors are
// logged and hidden behind a generic 500.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	code, ok := engine.CodeOf(err)
	if !ok {
		s.logger.Error("internal error", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Internal", "internal error")
		return
	}
	s.writeError(w, statusForCode(code), string(code), err.Error())
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// writeJSON renders v. The status is already committed when encoding
// starts, so an encode failure can only be logged, not reported.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response", "error", err)
	}
}

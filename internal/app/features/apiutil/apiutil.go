// internal/app/features/apiutil/apiutil.go

// Package apiutil holds the JSON rendering shared by every feature
// handler: response encoding, request decoding, and the mapping from the
// engine failure taxonomy to HTTP status codes.
package apiutil

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/hallmatch/hallmatch/internal/app/system/faults"
)

// WriteJSON renders v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError maps an engine failure to its HTTP status. Typed failures
// carry their own message; anything else is a 500 with the detail kept in
// the log rather than the response.
func WriteError(w http.ResponseWriter, log *zap.Logger, err error) {
	var fe *faults.Error
	if errors.As(err, &fe) {
		WriteJSON(w, statusFor(fe.Kind), errorBody{Error: fe.Kind.String(), Message: fe.Message})
		return
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		WriteJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: "not found"})
		return
	}

	log.Error("request failed", zap.Error(err))
	WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "internal", Message: "internal error"})
}

func statusFor(k faults.Kind) int {
	switch k {
	case faults.KindUnauthorized:
		return http.StatusUnauthorized
	case faults.KindNotFound:
		return http.StatusNotFound
	case faults.KindForbidden:
		return http.StatusForbidden
	case faults.KindConflict:
		return http.StatusConflict
	case faults.KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON reads a request body into dst, refusing unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return faults.Invalid("malformed request body")
	}
	return nil
}

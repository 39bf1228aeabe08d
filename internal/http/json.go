package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/quantsignal/forecast-api/internal/errors"
)

const maxRequestBody = 1 << 20

// DecodeJSON decodes a bounded JSON body into dst. It returns false after
// writing a 400 when the body is malformed or carries unknown fields.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Client went away.
		return
	}
}

// ErrorParams groups parameters for WriteError.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
	// Extra fields merged into the body, e.g. reset_in for rate limiting.
	Extra map[string]any
}

// WriteError writes {"error": ErrCode, "message": Err.Error()} plus any Extra fields.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	body := map[string]any{"error": p.ErrCode, "message": p.Err.Error()}
	for k, v := range p.Extra {
		body[k] = v
	}
	WriteJSON(w, p.Code, body)
}

// statusForCode maps an application error code to an HTTP status.
var statusForCode = map[apperrors.ErrorCode]int{
	apperrors.ErrCodeNotFound:     http.StatusNotFound,
	apperrors.ErrCodeConflict:     http.StatusConflict,
	apperrors.ErrCodeValidation:   http.StatusBadRequest,
	apperrors.ErrCodeForeignKey:   http.StatusConflict,
	apperrors.ErrCodeTimeout:      http.StatusGatewayTimeout,
	apperrors.ErrCodeCanceled:     499,
	apperrors.ErrCodeUnauthorized: http.StatusUnauthorized,
	apperrors.ErrCodeForbidden:    http.StatusForbidden,
	apperrors.ErrCodeRateLimited:  http.StatusTooManyRequests,
	apperrors.ErrCodeUnavailable:  http.StatusServiceUnavailable,
}

// writeServiceError renders err. AppErrors keep their code and client-safe
// message; anything else becomes a 500 tagged with fallback and a generic message.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: fallback,
			Err:     errors.New("internal error"),
		})
		return
	}
	status, ok := statusForCode[appErr.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	p := ErrorParams{Code: status, ErrCode: string(appErr.Code), Err: errors.New(appErr.Message)}
	if appErr.Field != "" {
		p.Extra = map[string]any{"field": appErr.Field}
	}
	WriteError(w, p)
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/convograph/convograph/types"
)

// Response is the uniform envelope every endpoint returns.
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// ErrorInfo carries the engine error code alongside the message.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Node    string `json:"node,omitempty"`
}

// WriteJSON writes data as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a success envelope.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// WriteError maps an engine error onto an HTTP status and writes the
// error envelope. Static-check errors are the caller's fault, runtime
// flow errors are ours, collaborator failures are upstream's.
func WriteError(w http.ResponseWriter, err error, logger *zap.Logger) {
	code := types.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case types.ErrStaticCheck:
		status = http.StatusBadRequest
	case types.ErrCollaborator:
		status = http.StatusBadGateway
	}

	info := &ErrorInfo{Code: string(code), Message: err.Error()}
	var e *types.Error
	if errors.As(err, &e) {
		info.Message = e.Message
		info.Node = e.Node
	}

	if logger != nil {
		logger.Error("api error",
			zap.String("code", string(code)),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	WriteJSON(w, status, Response{Success: false, Error: info, Timestamp: time.Now()})
}

// WriteErrorMessage writes a plain error envelope without an engine code.
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Response{
		Success:   false,
		Error:     &ErrorInfo{Message: message},
		Timestamp: time.Now(),
	})
}

const maxBodyBytes = 1 << 20

// DecodeJSONBody decodes the request body into dst. On failure it has
// already written the error response and returns false.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// RequirePost rejects every method but POST.
func RequirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

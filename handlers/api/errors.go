// Package api holds helpers shared by the HTTP handlers.
package api

import (
	"errors"
	"io"
	"net/http"

	"campus-store/core"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

// StatusOf maps an error onto the HTTP status answered for it.
func StatusOf(err error) int {
	switch core.CodeOf(err) {
	case core.CodeValidation:
		return http.StatusBadRequest
	case core.CodeNotFound:
		return http.StatusNotFound
	case core.CodeConflict:
		return http.StatusConflict
	case core.CodeSizeLimit:
		return http.StatusRequestEntityTooLarge
	case core.CodePermission:
		return http.StatusForbidden
	case core.CodeTransient:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// RenderError answers with the status of err and {"error": message}.
// Server side failures are logged and their details withheld.
func RenderError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	msg := err.Error()
	var e *core.Error
	if errors.As(err, &e) {
		msg = e.Message
	}
	if status >= http.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": status,
			"error":  err,
		}).Error("Request failed")
		if status == http.StatusInternalServerError {
			msg = http.StatusText(status)
		}
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg})
}

// ReadFields decodes a request body holding a single JSON object.
func ReadFields(r *http.Request) (map[string]any, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, FormError(err, 0)
	}
	fields, err := core.DecodeFields(data)
	if err != nil {
		return nil, core.Validation("request body must be a JSON object: %v", err)
	}
	return fields, nil
}

// FormError classifies a failure to read a request body. limit is the
// configured maximum the body was capped to.
func FormError(err error, limit int64) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return core.SizeLimit(maxErr.Limit+1, limit)
	}
	return core.Validation("unreadable request body: %v", err)
}

// MethodNotAllowed answers 405 in the error format of the API.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusMethodNotAllowed)
	render.JSON(w, r, ErrorResponse{Error: "Method not allowed"})
}

func NotFound(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusNotFound)
	render.JSON(w, r, ErrorResponse{Error: "Not found"})
}

package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/John-Robertt/plugincfg-merge/internal/merge"
	"github.com/John-Robertt/plugincfg-merge/internal/model"
	"github.com/John-Robertt/plugincfg-merge/internal/plugincfg"
	"github.com/John-Robertt/plugincfg-merge/internal/render"
	"github.com/John-Robertt/plugincfg-merge/internal/template"
)

const stageRequest = "validate_request"

// APIError is used by the HTTP layer for request validation and a few
// HTTP-specific errors.
type APIError struct {
	Status   int
	AppError model.AppError
	Cause    error
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *APIError) Unwrap() error { return e.Cause }

func apiError(status int, app model.AppError, cause error) error {
	return &APIError{Status: status, AppError: app, Cause: cause}
}

func requestError(code, message, hint string) error {
	return apiError(http.StatusBadRequest, model.AppError{
		Code:    code,
		Message: message,
		Stage:   stageRequest,
		Hint:    hint,
	}, nil)
}

// errorStatus maps a pipeline error to its HTTP status and payload.
func errorStatus(err error) (int, model.AppError) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status, ae.AppError
	}

	// Input content errors => 422.
	var pe *plugincfg.ParseError
	if errors.As(err, &pe) {
		return http.StatusUnprocessableEntity, pe.AppError
	}
	var te *template.TemplateError
	if errors.As(err, &te) {
		return http.StatusUnprocessableEntity, te.AppError
	}

	var me *merge.MergeError
	if errors.As(err, &me) {
		if me.AppError.Code == merge.CodeInconsistent {
			return http.StatusInternalServerError, me.AppError
		}
		return http.StatusUnprocessableEntity, me.AppError
	}

	var re *render.RenderError
	if errors.As(err, &re) {
		return http.StatusInternalServerError, re.AppError
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, model.AppError{
			Code:    "MERGE_TIMEOUT",
			Message: "merge did not finish in time",
			Stage:   model.StageMerge,
		}
	}

	// Fallback: internal bug.
	return http.StatusInternalServerError, model.AppError{
		Code:    "INTERNAL_ERROR",
		Message: "internal server error",
		Stage:   "internal",
		Hint:    err.Error(),
	}
}

func (s *server) writeErrorFromErr(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	status, app := errorStatus(err)
	s.metrics.observeAppError(app.Stage, app.Code)
	s.opt.Logger.Warn("Merge request failed", "status", status, "stage", app.Stage, "code", app.Code, "error", err)
	WriteError(w, status, app)
}

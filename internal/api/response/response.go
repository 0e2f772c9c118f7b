// Package response writes JSON and problem responses.
package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tripwise/transferroute/internal/api/middleware"
	"github.com/tripwise/transferroute/internal/api/models"
	"github.com/tripwise/transferroute/internal/transfer"
)

// JSON writes data with the given status, echoing the request ID.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if id := middleware.GetRequestID(r.Context()); id != "" {
		w.Header().Set(middleware.RequestIDHeader, id)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error writes problem with the request path as its instance.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.WithInstance(r.URL.Path).Write(w)
}

// BadRequest writes a 400 problem.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errs []models.FieldError) {
	Error(w, r, models.NewBadRequest(middleware.GetRequestID(r.Context()), detail, errs))
}

// ServiceUnavailable writes a 503 problem.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(middleware.GetRequestID(r.Context()), detail))
}

// FromError maps a composition error to a problem: invalid requests give
// 400, no route gives 404, an expired deadline gives 503 and anything else
// gives 500 without leaking the error text.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	traceID := middleware.GetRequestID(r.Context())

	var verr *transfer.ValidationError
	switch {
	case errors.As(err, &verr):
		fields := make([]models.FieldError, 0, len(verr.Problems))
		for _, p := range verr.Problems {
			fields = append(fields, models.FieldError{Field: "request", Message: p, Code: "invalid"})
		}
		Error(w, r, models.NewBadRequest(traceID, "The transfer request is invalid.", fields))
	case errors.Is(err, transfer.ErrInvalidRequest):
		Error(w, r, models.NewBadRequest(traceID, err.Error(), nil))
	case errors.Is(err, transfer.ErrNoRouteFound):
		Error(w, r, models.NewNoRoute(traceID, "No strategy produced a route between these points."))
	case errors.Is(err, context.DeadlineExceeded):
		Error(w, r, models.NewServiceUnavailable(traceID, "Route composition timed out."))
	default:
		Error(w, r, models.NewInternalError(traceID, "An unexpected error occurred."))
	}
}

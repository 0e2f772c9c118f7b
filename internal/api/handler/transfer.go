package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripwise/transferroute/internal/api/models"
	"github.com/tripwise/transferroute/internal/api/response"
	"github.com/tripwise/transferroute/internal/transfer"
)

const maxComposeBody = 64 << 10

// Composer is the part of transfer.Service the handler needs.
type Composer interface {
	Compose(ctx context.Context, req *transfer.TransferRequest) (*transfer.Result, error)
}

// TransferHandler serves route composition.
type TransferHandler struct {
	composer Composer
	now      func() time.Time
}

// NewTransferHandler creates a TransferHandler. now may be nil.
func NewTransferHandler(composer Composer, now func() time.Time) *TransferHandler {
	if now == nil {
		now = time.Now
	}
	return &TransferHandler{composer: composer, now: now}
}

// Compose handles POST /v1/transfers:compose.
func (h *TransferHandler) Compose(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxComposeBody))
	dec.DisallowUnknownFields()

	var body models.ComposeRequest
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.BadRequest(w, r, "Request body is too large.", nil)
			return
		}
		response.BadRequest(w, r, "Request body must be a JSON transfer request: "+err.Error(), nil)
		return
	}

	if errs := body.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "The transfer request is invalid.", errs)
		return
	}

	result, err := h.composer.Compose(r.Context(), body.ToTransferRequest(h.now()))
	if err != nil {
		switch {
		case errors.Is(err, transfer.ErrNoRouteFound), errors.Is(err, transfer.ErrInvalidRequest):
			log.Warn().Err(err).Msg("compose rejected")
		default:
			log.Error().Err(err).Msg("compose failed")
		}
		response.FromError(w, r, err)
		return
	}

	log.Debug().
		Bool("cached", result.Cached).
		Str("primary", string(result.Primary.Strategy)).
		Str("backup", string(result.Backup.Strategy)).
		Msg("transfer composed")

	response.JSON(w, r, http.StatusOK, result)
}

package webhook

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-story/pkg/simplestory"
)

// DefaultMaxBodyBytes bounds the webhook body read by Handler
const DefaultMaxBodyBytes = 1 << 20

// Response is the body of a handled webhook
type Response struct {
	OK   bool     `json:"ok"`
	Tags []string `json:"tags,omitempty"`
}

// Handler serves webhook requests
type Handler struct {
	invalidator *Invalidator
	verifier    SignatureVerifier
	logger      *slog.Logger
}

// NewHandler creates a webhook handler. A nil verifier accepts unsigned
// requests and fails signed ones, since no secret is configured.
func NewHandler(invalidator *Invalidator, verifier SignatureVerifier) *Handler {
	return &Handler{
		invalidator: invalidator,
		verifier:    verifier,
		logger:      invalidator.logger,
	}
}

// NewSecretHandler creates a webhook handler that verifies signatures with
// secret. An empty secret disables verification.
func NewSecretHandler(invalidator *Invalidator, secret string) *Handler {
	if secret == "" {
		return NewHandler(invalidator, nil)
	}
	return NewHandler(invalidator, HMACVerifier{Secret: secret})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, DefaultMaxBodyBytes))
	if err != nil {
		h.logger.Error("Failed to read webhook body", "err", err)
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if signature != "" {
		if h.verifier == nil {
			h.logger.Error("Signed webhook without configured secret", "err", simplestory.ErrMissingSecret)
			http.Error(w, simplestory.ErrMissingSecret.Error(), http.StatusInternalServerError)
			return
		}
		if !h.verifier.Verify(signature, payload) {
			h.logger.Warn("Invalid webhook signature", "err", simplestory.ErrInvalidSignature)
			http.Error(w, simplestory.ErrInvalidSignature.Error(), http.StatusUnauthorized)
			return
		}
	}

	tags, err := h.invalidator.Invalidate(r.Context(), payload)
	if err != nil {
		var ve *simplestory.ValidationError
		if errors.As(err, &ve) {
			h.logger.Warn("Invalid webhook payload", "field", ve.Field, "err", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("Failed to invalidate", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	render.JSON(w, r, Response{OK: true, Tags: tags})
}

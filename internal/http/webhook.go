package http

import (
	"errors"
	"io"
	"net/http"

	"expensebot/internal/log"
	"expensebot/internal/validate"
	"expensebot/internal/webhook"
)

const (
	headerSignature = "X-Hub-Signature-256"
	eventReceived   = "EVENT_RECEIVED"
)

// handleVerify answers the platform's subscription handshake.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || s.cfg.VerifyToken == "" || q.Get("hub.verify_token") != s.cfg.VerifyToken {
		log.FromContext(r.Context()).WithComponent(log.ComponentWebhook).WarnContext(r.Context(),
			"Webhook verification rejected", "mode", q.Get("hub.mode"))
		w.WriteHeader(http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, q.Get("hub.challenge"))
}

// handleWebhook authenticates and acknowledges an event, leaving processing to the queue.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx).WithComponent(log.ComponentWebhook)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			webhookRequestsTotal.WithLabelValues(resultTooLarge).Inc()
			logger.WarnContext(ctx, "Webhook body too large", "limit", tooLarge.Limit)
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		webhookRequestsTotal.WithLabelValues(resultReadError).Inc()
		logger.ErrorContext(ctx, "Failed to read webhook body", log.FieldError, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if !validate.VerifySignature(body, r.Header.Get(headerSignature), s.cfg.AppSecret) {
		webhookRequestsTotal.WithLabelValues(resultBadSignature).Inc()
		logger.WarnContext(ctx, "Webhook signature rejected")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if _, err := webhook.Decode(body); err != nil {
		if errors.Is(err, webhook.ErrUnknownObject) {
			webhookRequestsTotal.WithLabelValues(resultUnknown).Inc()
			logger.WarnContext(ctx, "Webhook object not handled", log.FieldError, err)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		webhookRequestsTotal.WithLabelValues(resultDecodeError).Inc()
		logger.ErrorContext(ctx, "Failed to decode webhook", log.FieldError, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	// A failed hand-off is logged and still acknowledged.
	if err := s.queue.Enqueue(ctx, body); err != nil {
		webhookRequestsTotal.WithLabelValues(resultEnqueueError).Inc()
		logger.ErrorContext(ctx, "Failed to enqueue webhook", log.FieldError, err)
	} else {
		webhookRequestsTotal.WithLabelValues(resultAccepted).Inc()
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, eventReceived)
}

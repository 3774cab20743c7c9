// Package api provides HTTP handlers for LineBridge endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/chiayulab/linebridge/internal/line"
	"github.com/chiayulab/linebridge/internal/models"
)

// healthHandler answers the platform's health probe. The body carries no
// semantics; only the status matters.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK")) //nolint:errcheck
}

// webhookHandler processes one webhook delivery from the messaging platform.
// Only the first event of a delivery is routed, and only text messages; all
// other deliveries are acknowledged without a participant-visible reply.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}

	// The platform console probes the endpoint with a GET during setup.
	if r.Method == http.MethodGet {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Webhook endpoint is ready")) //nolint:errcheck
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// A webhook delivery must always be answered; a panic anywhere below
	// degrades to a generic error status with no participant reply.
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Server.webhookHandler: recovered from panic", "panic", rec)
			writeJSONResponse(w, http.StatusInternalServerError, models.StatusError("internal error"))
		}
	}()

	var payload models.WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("Server.webhookHandler: failed to decode payload", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.StatusError("invalid payload"))
		return
	}

	if len(payload.Events) == 0 {
		slog.Debug("Server.webhookHandler: delivery carried no events")
		writeJSONResponse(w, http.StatusOK, models.Status("no events"))
		return
	}

	event := payload.Events[0]
	if !event.IsTextMessage() {
		slog.Debug("Server.webhookHandler: ignoring non-text event", "type", event.Type, "message_type", event.Message.Type)
		writeJSONResponse(w, http.StatusOK, models.Status("ignored"))
		return
	}

	inbound := models.InboundMessage{
		UserID:     event.Source.UserID,
		ReplyToken: event.ReplyToken,
		Text:       event.Message.Text,
		Received:   time.Now(),
	}
	if err := inbound.Validate(); err != nil {
		slog.Warn("Server.webhookHandler: event missing required fields", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.StatusError("invalid event"))
		return
	}
	if err := line.ValidateUserID(inbound.UserID); err != nil {
		slog.Warn("Server.webhookHandler: sender id malformed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.StatusError("invalid event"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), RequestTimeout)
	defer cancel()

	// Serialize per user: same-user deliveries (platform retries included)
	// must not interleave session mutations; distinct users run in parallel.
	s.sessions.Lock(inbound.UserID)
	defer s.sessions.Unlock(inbound.UserID)

	s.logMessage(inbound.UserID, models.DirectionInbound, inbound.Text)

	reply := s.router.Route(ctx, inbound.UserID, inbound.Text)

	s.logMessage(inbound.UserID, models.DirectionOutbound, reply)

	if err := s.sender.Reply(ctx, inbound.ReplyToken, reply); err != nil {
		// The reply window may have lapsed or the platform may be down.
		// Still acknowledge the delivery; redelivery is the platform's call.
		slog.Error("Server.webhookHandler: failed to send reply", "error", err, "userID", inbound.UserID)
	}

	slog.Info("Server.webhookHandler: delivery processed", "userID", inbound.UserID, "reply_length", len(reply))
	writeJSONResponse(w, http.StatusOK, models.Status("success"))
}

// messagesHandler returns the message log for experimenter debugging.
func (s *Server) messagesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	messages, err := s.st.GetMessages()
	if err != nil {
		slog.Error("Server.messagesHandler: failed to read message log", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.StatusError("failed to read message log"))
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	writeJSONResponse(w, http.StatusOK, messages)
}

// logMessage records one transcript entry. Log failures never affect routing.
func (s *Server) logMessage(userID string, direction models.MessageDirection, text string) {
	if len(text) > models.MaxMessageTextLength {
		text = text[:models.MaxMessageTextLength]
	}
	m := models.Message{
		ID:        uuid.NewString(),
		UserID:    userID,
		Direction: direction,
		Text:      text,
		Time:      time.Now().Unix(),
	}
	if err := s.st.AddMessage(m); err != nil {
		slog.Warn("Server.logMessage: failed to record message", "error", err, "userID", userID, "direction", direction)
	}
}

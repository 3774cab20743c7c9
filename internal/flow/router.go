// Package flow implements the participant routing engine: the state machine
// that decides, for each inbound message, whether the sender needs a
// verification code, is inside the scripted intervention, is due to have the
// intervention triggered, or is in ordinary AI-backed conversation.
package flow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/chiayulab/linebridge/internal/backend"
	"github.com/chiayulab/linebridge/internal/emotion"
	"github.com/chiayulab/linebridge/internal/models"
	"github.com/chiayulab/linebridge/internal/script"
	"github.com/chiayulab/linebridge/internal/session"
)

// ResetCommand is the exact, case-sensitive message that unbinds a
// participant and clears their session state.
const ResetCommand = "RESET"

// DefaultInterventionDay is the experiment day the scripted conflict fires on.
const DefaultInterventionDay = 14

// Fixed participant-facing replies. Diagnostic detail never reaches a
// participant; failures degrade to these texts.
const (
	ReplyResetDone    = "已重置您的資料，驗證碼綁定已解除。如要重新開始，請再次輸入您的5位數驗證碼。"
	ReplyOnboarding   = "您好！請輸入研究人員提供的5位數驗證碼，完成驗證後即可開始聊天。"
	ReplyCodeSuccess  = "驗證成功！很高興認識你，接下來的日子請多多指教，現在就可以開始聊天囉。"
	ReplyCodeNotFound = "找不到這組驗證碼，請確認數字是否正確後再輸入一次。"
	ReplySystemError  = "系統發生錯誤，請稍後再試，或聯絡研究人員。"
)

// RosterService is the roster surface the router depends on.
type RosterService interface {
	FindByCode(ctx context.Context, code string) (*models.Participant, error)
	FindByUserID(ctx context.Context, userID string) (*models.Participant, error)
	Apply(ctx context.Context, patch models.RosterPatch) error
}

// Router consumes one inbound message at a time and produces exactly one
// reply. Callers must hold the user's session lock for the duration of Route.
type Router struct {
	roster          RosterService
	backend         backend.Client
	classifier      *emotion.Classifier
	script          *script.Table
	sessions        *session.Store
	interventionDay int
	loc             *time.Location
	now             func() time.Time
}

// NewRouter creates a routing engine with its collaborators.
func NewRouter(rosterSvc RosterService, backendClient backend.Client, classifier *emotion.Classifier, scriptTable *script.Table, sessions *session.Store, interventionDay int, loc *time.Location) *Router {
	if interventionDay <= 0 {
		interventionDay = DefaultInterventionDay
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Router{
		roster:          rosterSvc,
		backend:         backendClient,
		classifier:      classifier,
		script:          scriptTable,
		sessions:        sessions,
		interventionDay: interventionDay,
		loc:             loc,
		now:             time.Now,
	}
}

// SetClock overrides the router's time source. Intended for tests.
func (r *Router) SetClock(now func() time.Time) {
	r.now = now
}

// Route processes one inbound message and returns the reply text. It never
// fails past this boundary: roster and backend failures degrade to fixed
// texts, and side effects that cannot complete are logged and dropped.
func (r *Router) Route(ctx context.Context, userID, text string) string {
	slog.Debug("Router.Route: processing message", "userID", userID, "text_length", len(text))

	// 1. Reset command, exact and case-sensitive.
	if text == ResetCommand {
		return r.handleReset(ctx, userID)
	}

	participant := r.lookupParticipant(ctx, userID)

	// 2. Active scripted intervention.
	if turn, active := r.sessions.InterventionTurn(userID); active {
		if turn > script.LastScriptedTurn {
			// The script has run its course; this same message exits the
			// intervention and is routed as an ordinary turn.
			slog.Debug("Router.Route: intervention complete, falling through", "userID", userID, "turn", turn)
			r.sessions.ClearInterventionTurn(userID)
		} else {
			return r.handleScriptedTurn(ctx, userID, participant, turn)
		}
	}

	// 3. Unverified user: only a 5-digit code advances them.
	if participant == nil {
		return r.handleVerification(ctx, userID, text)
	}

	// 4. Intervention due: strict day equality, once per participant.
	if participant.Day == r.interventionDay && !participant.D14Triggered {
		return r.handleInterventionTrigger(ctx, userID, text)
	}

	// 5. Ordinary AI-backed conversation.
	return r.handleConversation(ctx, userID, participant, text)
}

// lookupParticipant resolves the sender's roster record. A degraded roster
// (timeout, non-success, bad payload) is treated the same as no record.
func (r *Router) lookupParticipant(ctx context.Context, userID string) *models.Participant {
	participant, err := r.roster.FindByUserID(ctx, userID)
	if err != nil {
		slog.Warn("Router.lookupParticipant: roster lookup degraded, treating as unverified", "error", err, "userID", userID)
		return nil
	}
	return participant
}

func (r *Router) handleReset(ctx context.Context, userID string) string {
	slog.Info("Router.handleReset: resetting participant", "userID", userID)
	if err := r.roster.Apply(ctx, models.RosterPatch{UserID: userID, ClearUserID: true}); err != nil {
		slog.Warn("Router.handleReset: roster unbind failed", "error", err, "userID", userID)
	}
	r.sessions.Reset(userID)
	return ReplyResetDone
}

func (r *Router) handleScriptedTurn(ctx context.Context, userID string, participant *models.Participant, turn int) string {
	line := r.script.FillerLine()
	if participant != nil {
		if scripted, ok := r.script.Line(participant.Group, turn); ok {
			line = scripted
		} else {
			slog.Warn("Router.handleScriptedTurn: no script entry, using filler", "userID", userID, "group", participant.Group, "turn", turn)
		}
	} else {
		// Roster degraded mid-script. Keep the script moving rather than
		// bouncing an already-verified participant to onboarding.
		slog.Warn("Router.handleScriptedTurn: no roster record during active script, using filler", "userID", userID, "turn", turn)
	}

	r.sessions.SetInterventionTurn(userID, turn+1)
	r.recordInteraction(ctx, userID)
	slog.Debug("Router.handleScriptedTurn: scripted reply served", "userID", userID, "turn", turn)
	return line
}

func (r *Router) handleVerification(ctx context.Context, userID, text string) string {
	code := strings.TrimSpace(text)
	if !isVerificationCode(code) {
		slog.Debug("Router.handleVerification: input is not a code, prompting", "userID", userID)
		return ReplyOnboarding
	}

	record, err := r.roster.FindByCode(ctx, code)
	if err != nil {
		slog.Warn("Router.handleVerification: code lookup degraded", "error", err, "userID", userID)
		return ReplyCodeNotFound
	}
	if record == nil {
		slog.Info("Router.handleVerification: code not in roster", "userID", userID)
		return ReplyCodeNotFound
	}

	patch := models.RosterPatch{
		Code:             code,
		UserID:           userID,
		FirstInteraction: r.timestamp(),
	}
	if err := r.roster.Apply(ctx, patch); err != nil {
		// Fire-and-forget: the participant proceeds even if the bind write
		// was lost; the roster is reconciled out-of-band.
		slog.Warn("Router.handleVerification: roster bind failed", "error", err, "userID", userID)
	}
	slog.Info("Router.handleVerification: participant verified", "userID", userID, "group", record.Group)
	return ReplyCodeSuccess
}

func (r *Router) handleInterventionTrigger(ctx context.Context, userID, text string) string {
	detected := r.classifier.Classify(text)
	sentence := r.script.TriggerSentence(detected)
	slog.Info("Router.handleInterventionTrigger: triggering scripted intervention", "userID", userID, "emotion", detected)

	patch := models.RosterPatch{
		UserID:          userID,
		D14Trigger:      true,
		Emotion:         string(detected),
		TriggerSentence: sentence,
	}
	if err := r.roster.Apply(ctx, patch); err != nil {
		slog.Warn("Router.handleInterventionTrigger: roster trigger log failed", "error", err, "userID", userID)
	}

	// The trigger sentence is turn 1; the next scripted lookup uses turn 2.
	r.sessions.SetInterventionTurn(userID, script.FirstScriptedTurn)
	r.recordInteraction(ctx, userID)
	return sentence
}

func (r *Router) handleConversation(ctx context.Context, userID string, participant *models.Participant, text string) string {
	if !models.IsValidGroup(participant.Group) {
		slog.Error("Router.handleConversation: participant has unknown group", "userID", userID, "group", participant.Group)
		return ReplySystemError
	}

	conversationID, _ := r.sessions.ConversationID(userID)
	reply, err := r.backend.Send(ctx, backend.Request{
		Group:          participant.Group,
		UserID:         userID,
		Text:           text,
		ConversationID: conversationID,
	})
	if err != nil {
		slog.Error("Router.handleConversation: backend rejected group", "error", err, "userID", userID, "group", participant.Group)
		return ReplySystemError
	}

	r.sessions.SetConversationID(userID, reply.ConversationID)
	r.recordInteraction(ctx, userID)
	slog.Debug("Router.handleConversation: backend reply served", "userID", userID, "group", participant.Group, "threaded", conversationID != "")
	return reply.Text
}

// recordInteraction marks the daily first-interaction state and fires the
// roster's last-interaction log. The roster write is best-effort.
func (r *Router) recordInteraction(ctx context.Context, userID string) {
	first := r.sessions.MarkInteractedToday(userID)
	patch := models.RosterPatch{
		UserID:          userID,
		LastInteraction: r.timestamp(),
		IsFirstToday:    first,
	}
	if err := r.roster.Apply(ctx, patch); err != nil {
		slog.Warn("Router.recordInteraction: roster interaction log failed", "error", err, "userID", userID)
	}
}

func (r *Router) timestamp() string {
	return r.now().In(r.loc).Format(time.RFC3339)
}

// isVerificationCode reports whether the trimmed input has the exact shape of
// a participant code: five characters, all ASCII digits.
func isVerificationCode(code string) bool {
	if len(code) != models.VerificationCodeLength {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

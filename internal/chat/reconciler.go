// Package chat keeps the displayed conversation consistent with the
// user's last action despite network latency. Asynchronous loads,
// creates, and deletes all funnel through the Reconciler, whose
// policy is "last synchronous intent wins, stale async results are
// dropped".
package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agrigpt/chatclient/internal/api"
	"github.com/agrigpt/chatclient/internal/model/chat"
)

// WelcomeText greets the user on every fresh conversation.
const WelcomeText = "नमस्ते! 🌿 मैं AgriGPT हूं, आपका कृषि सहायक। आप मुझसे खेती से जुड़े कोई भी सवाल पूछ सकते हैं! 👨‍🌾"

const (
	voiceLoginPromptText = "🎤 Voice feature is only available for logged-in users. Please login or signup to use voice input! 🔐"
	trialLimitText       = "⚠️ You have reached your free trial limit of 10 messages. Please login or signup to continue chatting! 🔐"
)

var (
	ErrLoginRequired = errors.New("login required")
	ErrTrialExpired  = errors.New("free trial limit reached")
)

// Backend is the remote REST surface the reconciler synchronizes
// against. *api.Client satisfies it.
type Backend interface {
	SendMessage(ctx context.Context, message, chatID string) (*api.ChatResponse, error)
	SendVoice(ctx context.Context, wav []byte) (*api.VoiceResponse, error)
	ListSessions(ctx context.Context) ([]chat.Session, error)
	GetSession(ctx context.Context, id string) (*api.History, error)
	DeleteSession(ctx context.Context, id string) error
}

// Credentials exposes the locally persisted auth and trial state.
type Credentials interface {
	Token() string
	TrialCount() (int, error)
	IncrementTrial() (int, error)
}

// Reconciler tracks the current session identity and its message
// list. The current id lives in a single mutex-guarded field that
// every in-flight operation reads synchronously; a load applies its
// payload only if the id it captured is still current on completion.
//
// Invariant: the rendered message list always belongs to the session
// whose id is current, or is the welcome placeholder when no session
// id exists yet.
type Reconciler struct {
	backend    Backend
	creds      Credentials
	logger     *zap.Logger
	trialLimit int

	mu          sync.Mutex
	currentID   string // empty until the backend mints one
	messages    []chat.Message
	sessions    []chat.Session
	loginPrompt bool
}

// NewReconciler wires the backend and credential store together.
func NewReconciler(backend Backend, creds Credentials, trialLimit int, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		backend:    backend,
		creds:      creds,
		logger:     logger,
		trialLimit: trialLimit,
	}
}

// Initialize fetches the session list for authenticated users and
// shows the welcome placeholder. Fetch failures degrade to the
// welcome placeholder alone.
func (r *Reconciler) Initialize(ctx context.Context) {
	if r.creds.Token() != "" {
		sessions, err := r.backend.ListSessions(ctx)
		if err != nil {
			r.logger.Error("failed to fetch chat sessions", zap.Error(err))
		} else {
			r.mu.Lock()
			r.sessions = sessions
			r.mu.Unlock()
		}
	}

	r.NewSession()
}

// CurrentID returns the current session id, empty when the
// conversation has not been persisted yet.
func (r *Reconciler) CurrentID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentID
}

// Messages returns a copy of the rendered message list.
func (r *Reconciler) Messages() []chat.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]chat.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Sessions returns a copy of the cached session list.
func (r *Reconciler) Sessions() []chat.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]chat.Session, len(r.sessions))
	copy(out, r.sessions)
	return out
}

// LoginPromptPending reports whether a refused action asked for login.
func (r *Reconciler) LoginPromptPending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loginPrompt
}

// ClearLoginPrompt acknowledges the login prompt.
func (r *Reconciler) ClearLoginPrompt() {
	r.mu.Lock()
	r.loginPrompt = false
	r.mu.Unlock()
}

// TrialStatus returns the persisted trial usage and the limit.
func (r *Reconciler) TrialStatus() (used, limit int) {
	used, err := r.creds.TrialCount()
	if err != nil {
		r.logger.Warn("failed to read trial counter", zap.Error(err))
	}
	return used, r.trialLimit
}

// LoadSession makes id current, clears the displayed messages, and
// fetches its history. The payload is applied only if id is still
// current when the fetch completes; otherwise it is discarded.
func (r *Reconciler) LoadSession(ctx context.Context, id string) error {
	if r.creds.Token() == "" {
		return ErrLoginRequired
	}

	r.mu.Lock()
	r.currentID = id
	r.messages = nil // never show a stale session's content while fetching
	r.mu.Unlock()

	history, err := r.backend.GetSession(ctx, id)
	if err != nil {
		r.logger.Error("failed to load chat session", zap.String("chatId", id), zap.Error(err))
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.currentID != id {
		r.logger.Warn("user switched chats, discarding loaded data", zap.String("chatId", id))
		return nil
	}

	messages := make([]chat.Message, 0, len(history.Messages))
	for _, m := range history.Messages {
		sender := chat.SenderBot
		if m.Role == "user" {
			sender = chat.SenderUser
		}
		messages = append(messages, chat.Message{
			ID:        m.Timestamp.Format(time.RFC3339Nano),
			Text:      m.Content,
			Sender:    sender,
			Timestamp: m.Timestamp,
		})
	}
	r.messages = messages
	return nil
}

// NewSession resets to an unpersisted conversation: the current id is
// cleared and the message list becomes the welcome placeholder, as
// one atomic transition.
func (r *Reconciler) NewSession() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetToWelcomeLocked()
}

// DeleteSession deletes server-side first; only on success is the
// session dropped from the local list. Deleting the current session
// resets to the welcome placeholder.
func (r *Reconciler) DeleteSession(ctx context.Context, id string) error {
	if r.creds.Token() == "" {
		return ErrLoginRequired
	}

	if err := r.backend.DeleteSession(ctx, id); err != nil {
		r.logger.Error("failed to delete chat session", zap.String("chatId", id), zap.Error(err))
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.sessions[:0]
	for _, s := range r.sessions {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	r.sessions = kept

	if r.currentID == id {
		r.resetToWelcomeLocked()
	}
	return nil
}

// ClearChat deletes the current session when one exists, then resets
// to the welcome placeholder regardless of the delete outcome.
func (r *Reconciler) ClearChat(ctx context.Context) {
	r.mu.Lock()
	id := r.currentID
	r.mu.Unlock()

	if id != "" && r.creds.Token() != "" {
		if err := r.backend.DeleteSession(ctx, id); err != nil {
			r.logger.Error("failed to delete chat session", zap.String("chatId", id), zap.Error(err))
		} else {
			r.mu.Lock()
			kept := r.sessions[:0]
			for _, s := range r.sessions {
				if s.ID != id {
					kept = append(kept, s)
				}
			}
			r.sessions = kept
			r.mu.Unlock()
		}
	}

	r.NewSession()
}

// SendText appends the user's message and posts it under the current
// session id, read synchronously at call time. Anonymous users are
// gated by the persisted trial counter: once the limit is reached the
// send is refused locally with a login prompt and no request issued.
// When the backend mints a session id for a first message, the id is
// adopted and the session list refreshed.
func (r *Reconciler) SendText(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	r.appendMessage(chat.Message{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    chat.SenderUser,
		Timestamp: time.Now(),
	})

	authenticated := r.creds.Token() != ""
	if !authenticated {
		used, err := r.creds.TrialCount()
		if err != nil {
			r.logger.Warn("failed to read trial counter", zap.Error(err))
		}
		if used >= r.trialLimit {
			r.appendBot(trialLimitText)
			r.mu.Lock()
			r.loginPrompt = true
			r.mu.Unlock()
			return ErrTrialExpired
		}

		if used, err = r.creds.IncrementTrial(); err != nil {
			r.logger.Warn("failed to persist trial counter", zap.Error(err))
		}
		r.logger.Info("trial message used", zap.Int("used", used), zap.Int("limit", r.trialLimit))
	}

	// The id is read synchronously here so an in-flight send always
	// targets the session the user last selected.
	sentID := r.CurrentID()

	resp, err := r.backend.SendMessage(ctx, text, sentID)
	if err != nil {
		r.logger.Error("chat request failed", zap.Error(err))
		r.appendBot("Error: Unable to connect to backend.")
		return nil
	}

	if resp.Error != "" {
		r.appendBot("Error: " + resp.Error)
		return nil
	}

	if resp.ChatID != "" && sentID == "" {
		r.mu.Lock()
		r.currentID = resp.ChatID
		r.mu.Unlock()

		if authenticated {
			if sessions, err := r.backend.ListSessions(ctx); err != nil {
				r.logger.Error("failed to refresh chat sessions", zap.Error(err))
			} else {
				r.mu.Lock()
				r.sessions = sessions
				r.mu.Unlock()
			}
		}
	}

	r.appendBot(resp.Reply)
	return nil
}

// SendVoice uploads a WAV recording. Success appends the transcript
// and the reply; failure appends a single bot error message.
func (r *Reconciler) SendVoice(ctx context.Context, wav []byte) error {
	if r.creds.Token() == "" {
		return ErrLoginRequired
	}

	resp, err := r.backend.SendVoice(ctx, wav)
	if err != nil {
		r.logger.Error("voice request failed", zap.Error(err))
		r.appendBot("Error: Unable to process voice message.")
		return nil
	}

	if resp.Error != "" {
		r.appendBot("Error: " + resp.Error)
		return nil
	}

	r.appendMessage(chat.Message{
		ID:        uuid.NewString(),
		Text:      resp.UserText,
		Sender:    chat.SenderUser,
		Timestamp: time.Now(),
	})
	r.appendBot(resp.AIReply)
	return nil
}

// PromptVoiceLogin appends the in-chat refusal shown when an
// unauthenticated user tries to record.
func (r *Reconciler) PromptVoiceLogin() {
	r.appendBot(voiceLoginPromptText)
	r.mu.Lock()
	r.loginPrompt = true
	r.mu.Unlock()
}

func (r *Reconciler) resetToWelcomeLocked() {
	r.currentID = ""
	r.messages = []chat.Message{{
		ID:        "welcome",
		Text:      WelcomeText,
		Sender:    chat.SenderBot,
		Timestamp: time.Now(),
	}}
}

func (r *Reconciler) appendMessage(m chat.Message) {
	r.mu.Lock()
	r.messages = append(r.messages, m)
	r.mu.Unlock()
}

func (r *Reconciler) appendBot(text string) {
	r.appendMessage(chat.Message{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    chat.SenderBot,
		Timestamp: time.Now(),
	})
}

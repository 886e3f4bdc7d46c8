package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrigpt/chatclient/internal/api"
	"github.com/agrigpt/chatclient/internal/model/chat"
)

type fakeBackend struct {
	mu sync.Mutex

	sendCalls   []sentMessage
	chatReply   *api.ChatResponse
	chatErr     error
	voiceCalls  int
	voiceReply  *api.VoiceResponse
	voiceErr    error
	sessions    []chat.Session
	listErr     error
	histories   map[string]*api.History
	historyGate map[string]chan struct{} // GetSession blocks on the gate when set
	deleted     []string
	deleteErr   error
}

type sentMessage struct {
	message string
	chatID  string
}

func (b *fakeBackend) SendMessage(_ context.Context, message, chatID string) (*api.ChatResponse, error) {
	b.mu.Lock()
	b.sendCalls = append(b.sendCalls, sentMessage{message: message, chatID: chatID})
	b.mu.Unlock()
	if b.chatErr != nil {
		return nil, b.chatErr
	}
	if b.chatReply != nil {
		return b.chatReply, nil
	}
	return &api.ChatResponse{Reply: "ok"}, nil
}

func (b *fakeBackend) SendVoice(context.Context, []byte) (*api.VoiceResponse, error) {
	b.mu.Lock()
	b.voiceCalls++
	b.mu.Unlock()
	if b.voiceErr != nil {
		return nil, b.voiceErr
	}
	if b.voiceReply != nil {
		return b.voiceReply, nil
	}
	return &api.VoiceResponse{UserText: "transcript", AIReply: "reply"}, nil
}

func (b *fakeBackend) ListSessions(context.Context) ([]chat.Session, error) {
	if b.listErr != nil {
		return nil, b.listErr
	}
	return b.sessions, nil
}

func (b *fakeBackend) GetSession(_ context.Context, id string) (*api.History, error) {
	b.mu.Lock()
	gate := b.historyGate[id]
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if h, ok := b.histories[id]; ok {
		return h, nil
	}
	return nil, errors.New("not found")
}

func (b *fakeBackend) DeleteSession(_ context.Context, id string) error {
	if b.deleteErr != nil {
		return b.deleteErr
	}
	b.mu.Lock()
	b.deleted = append(b.deleted, id)
	b.mu.Unlock()
	return nil
}

func (b *fakeBackend) sent() []sentMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]sentMessage, len(b.sendCalls))
	copy(out, b.sendCalls)
	return out
}

type fakeCreds struct {
	mu    sync.Mutex
	token string
	trial int
}

func (c *fakeCreds) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *fakeCreds) TrialCount() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trial, nil
}

func (c *fakeCreds) IncrementTrial() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trial++
	return c.trial, nil
}

func newTestReconciler(backend *fakeBackend, creds *fakeCreds) *Reconciler {
	r := NewReconciler(backend, creds, 10, nil)
	r.Initialize(context.Background())
	return r
}

func lastMessage(t *testing.T, r *Reconciler) chat.Message {
	t.Helper()
	msgs := r.Messages()
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

func TestInitializeShowsWelcome(t *testing.T) {
	r := newTestReconciler(&fakeBackend{}, &fakeCreds{})

	msgs := r.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, WelcomeText, msgs[0].Text)
	assert.Equal(t, chat.SenderBot, msgs[0].Sender)
	assert.Empty(t, r.CurrentID())
}

func TestSendTextAdoptsMintedChatID(t *testing.T) {
	backend := &fakeBackend{
		chatReply: &api.ChatResponse{Reply: "hello farmer", ChatID: "abc123"},
		sessions:  []chat.Session{{ID: "abc123", Title: "Hello"}},
	}
	r := newTestReconciler(backend, &fakeCreds{token: "tok"})

	require.NoError(t, r.SendText(context.Background(), "Hello"))

	assert.Equal(t, "abc123", r.CurrentID())
	assert.Equal(t, "hello farmer", lastMessage(t, r).Text)
	require.Len(t, r.Sessions(), 1, "session list refreshed after mint")

	// Subsequent sends carry the adopted id.
	require.NoError(t, r.SendText(context.Background(), "again"))
	sent := backend.sent()
	require.Len(t, sent, 2)
	assert.Empty(t, sent[0].chatID)
	assert.Equal(t, "abc123", sent[1].chatID)
}

func TestSendTextTransportErrorShownInChat(t *testing.T) {
	backend := &fakeBackend{chatErr: errors.New("dial tcp: refused")}
	r := newTestReconciler(backend, &fakeCreds{token: "tok"})

	require.NoError(t, r.SendText(context.Background(), "hi"))

	assert.Equal(t, "Error: Unable to connect to backend.", lastMessage(t, r).Text)
}

func TestSendTextBackendErrorShownInChat(t *testing.T) {
	backend := &fakeBackend{chatReply: &api.ChatResponse{Error: "model overloaded"}}
	r := newTestReconciler(backend, &fakeCreds{token: "tok"})

	require.NoError(t, r.SendText(context.Background(), "hi"))

	assert.Equal(t, "Error: model overloaded", lastMessage(t, r).Text)
}

func TestTrialGateRefusesEleventhSend(t *testing.T) {
	backend := &fakeBackend{}
	creds := &fakeCreds{} // anonymous
	r := newTestReconciler(backend, creds)

	for i := 0; i < 10; i++ {
		require.NoError(t, r.SendText(context.Background(), "msg"))
	}
	require.Len(t, backend.sent(), 10)
	assert.Equal(t, 10, creds.trial)

	err := r.SendText(context.Background(), "one too many")
	assert.ErrorIs(t, err, ErrTrialExpired)

	assert.Len(t, backend.sent(), 10, "refused send never reaches the backend")
	assert.Equal(t, trialLimitText, lastMessage(t, r).Text)
	assert.True(t, r.LoginPromptPending())

	// The user's own message still appears above the refusal.
	msgs := r.Messages()
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, "one too many", msgs[len(msgs)-2].Text)
	assert.Equal(t, chat.SenderUser, msgs[len(msgs)-2].Sender)
}

func TestAuthenticatedUsersBypassTrialGate(t *testing.T) {
	backend := &fakeBackend{}
	creds := &fakeCreds{token: "tok", trial: 10}
	r := newTestReconciler(backend, creds)

	require.NoError(t, r.SendText(context.Background(), "hi"))

	assert.Len(t, backend.sent(), 1)
	assert.Equal(t, 10, creds.trial, "trial counter untouched when logged in")
}

func TestLoadSessionDiscardsStaleResponse(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{
		histories: map[string]*api.History{
			"a": {Messages: []api.HistoryMessage{{Role: "user", Content: "old question", Timestamp: time.Now()}}},
			"b": {Messages: []api.HistoryMessage{{Role: "assistant", Content: "fresh answer", Timestamp: time.Now()}}},
		},
		historyGate: map[string]chan struct{}{"a": gate},
	}
	r := newTestReconciler(backend, &fakeCreds{token: "tok"})

	done := make(chan error, 1)
	go func() { done <- r.LoadSession(context.Background(), "a") }()

	// Wait until the slow load has claimed the current id, then switch.
	require.Eventually(t, func() bool { return r.CurrentID() == "a" }, time.Second, time.Millisecond)
	require.NoError(t, r.LoadSession(context.Background(), "b"))

	close(gate)
	require.NoError(t, <-done)

	assert.Equal(t, "b", r.CurrentID())
	msgs := r.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "fresh answer", msgs[0].Text, "late payload for the abandoned session is dropped")
}

func TestLoadSessionClearsMessagesBeforeFetch(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{
		histories:   map[string]*api.History{"a": {}},
		historyGate: map[string]chan struct{}{"a": gate},
	}
	r := newTestReconciler(backend, &fakeCreds{token: "tok"})

	done := make(chan error, 1)
	go func() { done <- r.LoadSession(context.Background(), "a") }()

	require.Eventually(t, func() bool { return r.CurrentID() == "a" }, time.Second, time.Millisecond)
	assert.Empty(t, r.Messages(), "no stale content rendered while fetching")

	close(gate)
	require.NoError(t, <-done)
}

func TestLoadSessionMapsRoles(t *testing.T) {
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	backend := &fakeBackend{
		histories: map[string]*api.History{
			"a": {Messages: []api.HistoryMessage{
				{Role: "user", Content: "धान की बुवाई कब करें?", Timestamp: ts},
				{Role: "assistant", Content: "जून में।", Timestamp: ts.Add(time.Second)},
			}},
		},
	}
	r := newTestReconciler(backend, &fakeCreds{token: "tok"})

	require.NoError(t, r.LoadSession(context.Background(), "a"))

	msgs := r.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, chat.SenderUser, msgs[0].Sender)
	assert.Equal(t, chat.SenderBot, msgs[1].Sender)
	assert.NotEmpty(t, msgs[0].ID)
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)
}

func TestLoadSessionRequiresLogin(t *testing.T) {
	r := newTestReconciler(&fakeBackend{}, &fakeCreds{})

	assert.ErrorIs(t, r.LoadSession(context.Background(), "a"), ErrLoginRequired)
}

func TestDeleteCurrentSessionResetsToWelcome(t *testing.T) {
	backend := &fakeBackend{
		sessions:  []chat.Session{{ID: "a"}, {ID: "b"}},
		histories: map[string]*api.History{"a": {}},
	}
	r := newTestReconciler(backend, &fakeCreds{token: "tok"})
	require.NoError(t, r.LoadSession(context.Background(), "a"))

	require.NoError(t, r.DeleteSession(context.Background(), "a"))

	assert.Equal(t, []string{"a"}, backend.deleted)
	assert.Empty(t, r.CurrentID())
	assert.Equal(t, WelcomeText, lastMessage(t, r).Text)

	sessions := r.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "b", sessions[0].ID)
}

func TestDeleteOtherSessionKeepsConversation(t *testing.T) {
	backend := &fakeBackend{
		sessions: []chat.Session{{ID: "a"}, {ID: "b"}},
		histories: map[string]*api.History{
			"a": {Messages: []api.HistoryMessage{{Role: "user", Content: "hi", Timestamp: time.Now()}}},
		},
	}
	r := newTestReconciler(backend, &fakeCreds{token: "tok"})
	require.NoError(t, r.LoadSession(context.Background(), "a"))

	require.NoError(t, r.DeleteSession(context.Background(), "b"))

	assert.Equal(t, "a", r.CurrentID())
	require.Len(t, r.Messages(), 1)
	assert.Equal(t, "hi", r.Messages()[0].Text)
}

func TestDeleteFailureKeepsLocalList(t *testing.T) {
	backend := &fakeBackend{
		sessions:  []chat.Session{{ID: "a"}},
		deleteErr: errors.New("503"),
	}
	r := newTestReconciler(backend, &fakeCreds{token: "tok"})

	require.Error(t, r.DeleteSession(context.Background(), "a"))

	assert.Len(t, r.Sessions(), 1, "server-first: nothing removed locally on failure")
}

func TestClearChatDeletesCurrentAndResets(t *testing.T) {
	backend := &fakeBackend{
		chatReply: &api.ChatResponse{Reply: "ok", ChatID: "abc123"},
	}
	r := newTestReconciler(backend, &fakeCreds{token: "tok"})
	require.NoError(t, r.SendText(context.Background(), "hi"))
	require.Equal(t, "abc123", r.CurrentID())

	r.ClearChat(context.Background())

	assert.Equal(t, []string{"abc123"}, backend.deleted)
	assert.Empty(t, r.CurrentID())
	assert.Equal(t, WelcomeText, lastMessage(t, r).Text)
}

func TestSendVoiceAppendsTranscriptAndReply(t *testing.T) {
	backend := &fakeBackend{
		voiceReply: &api.VoiceResponse{UserText: "मौसम कैसा है?", AIReply: "आज धूप रहेगी।"},
	}
	r := newTestReconciler(backend, &fakeCreds{token: "tok"})

	require.NoError(t, r.SendVoice(context.Background(), []byte("RIFF....")))

	msgs := r.Messages()
	require.Len(t, msgs, 3) // welcome + transcript + reply
	assert.Equal(t, "मौसम कैसा है?", msgs[1].Text)
	assert.Equal(t, chat.SenderUser, msgs[1].Sender)
	assert.Equal(t, "आज धूप रहेगी।", msgs[2].Text)
	assert.Equal(t, chat.SenderBot, msgs[2].Sender)
}

func TestSendVoiceTransportErrorShownInChat(t *testing.T) {
	backend := &fakeBackend{voiceErr: errors.New("timeout")}
	r := newTestReconciler(backend, &fakeCreds{token: "tok"})

	require.NoError(t, r.SendVoice(context.Background(), []byte("RIFF")))

	assert.Equal(t, "Error: Unable to process voice message.", lastMessage(t, r).Text)
}

func TestSendVoiceRequiresLogin(t *testing.T) {
	backend := &fakeBackend{}
	r := newTestReconciler(backend, &fakeCreds{})

	assert.ErrorIs(t, r.SendVoice(context.Background(), []byte("RIFF")), ErrLoginRequired)
	assert.Zero(t, backend.voiceCalls)
}

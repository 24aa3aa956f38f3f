package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"docchat-agent/internal/domain"
)

func newChat(t *testing.T, sessions *fakeSessions, records *fakeStatusStore, agent *fakeAgent) *ChatService {
	t.Helper()
	memories := func(userID, sessionID string) domain.ConversationMemory {
		return &fakeMemory{}
	}
	svc, err := NewChatService(sessions, records, agent, memories)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestChatRejectsEmptyPrompt(t *testing.T) {
	svc := newChat(t, newFakeSessions(), newFakeStatusStore(), &fakeAgent{})

	_, err := svc.Chat(context.Background(), ChatInput{UserID: "user-1", Prompt: "   "})
	require.Error(t, err)
	require.Equal(t, ErrorInvalidInput, CodeOf(err))
}

func TestChatDefaultsSessionID(t *testing.T) {
	sessions := newFakeSessions()
	agent := &fakeAgent{answer: "hi", summary: "Greeting"}
	svc := newChat(t, sessions, newFakeStatusStore(), agent)

	out, err := svc.Chat(context.Background(), ChatInput{UserID: "user-1", Prompt: "hello"})
	require.NoError(t, err)
	require.Equal(t, "default", out.SessionID)
	require.NotNil(t, sessions.sessions["default"])
}

func TestChatCreatesMissingSession(t *testing.T) {
	sessions := newFakeSessions()
	agent := &fakeAgent{answer: "sure", summary: "Contract questions"}
	svc := newChat(t, sessions, newFakeStatusStore(), agent)

	out, err := svc.Chat(context.Background(), ChatInput{
		UserID:    "user-1",
		Prompt:    "what does clause 4 say?",
		SessionID: "sess-1",
	})
	require.NoError(t, err)
	require.Equal(t, "sure", out.Answer)

	sess := sessions.sessions["sess-1"]
	require.NotNil(t, sess)
	require.Equal(t, "user-1", sess.UserID)
	require.Empty(t, sessions.touched)
}

func TestChatTouchesExistingSession(t *testing.T) {
	sessions := newFakeSessions()
	sessions.sessions["sess-1"] = &domain.Session{SessionID: "sess-1", UserID: "user-1"}
	sessions.turnCounts["sess-1"] = 4
	svc := newChat(t, sessions, newFakeStatusStore(), &fakeAgent{answer: "ok"})

	_, err := svc.Chat(context.Background(), ChatInput{
		UserID: "user-1", Prompt: "more", SessionID: "sess-1",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"sess-1"}, sessions.touched)
}

func TestChatPassesRegistryToAgent(t *testing.T) {
	sessions := newFakeSessions()
	records := newFakeStatusStore()
	records.registries["user-1"] = []string{"vs-1", "vs-2"}
	agent := &fakeAgent{answer: "found it", summary: "Docs"}
	svc := newChat(t, sessions, records, agent)

	_, err := svc.Chat(context.Background(), ChatInput{
		UserID: "user-1", Prompt: "search my docs", SessionID: "sess-1",
	})
	require.NoError(t, err)
	require.Equal(t, [][]string{{"vs-1", "vs-2"}}, agent.stores)
}

// A user with no indexed documents still gets an answer; the agent just
// runs without retrieval.
func TestChatToleratesEmptyRegistry(t *testing.T) {
	agent := &fakeAgent{answer: "plain answer", summary: "Chat"}
	svc := newChat(t, newFakeSessions(), newFakeStatusStore(), agent)

	out, err := svc.Chat(context.Background(), ChatInput{
		UserID: "user-1", Prompt: "hello", SessionID: "sess-1",
	})
	require.NoError(t, err)
	require.Equal(t, "plain answer", out.Answer)
	require.Empty(t, agent.stores[0])
}

func TestChatNamesSessionOnFirstExchange(t *testing.T) {
	sessions := newFakeSessions()
	agent := &fakeAgent{answer: "42", summary: "Meaning of life"}
	svc := newChat(t, sessions, newFakeStatusStore(), agent)

	_, err := svc.Chat(context.Background(), ChatInput{
		UserID: "user-1", Prompt: "what is the meaning of life?", SessionID: "sess-1",
	})
	require.NoError(t, err)
	require.Equal(t, "Meaning of life", sessions.named["sess-1"])
	require.Equal(t, []string{"what is the meaning of life?"}, agent.summarized)
}

func TestChatSkipsNamingAfterFirstExchange(t *testing.T) {
	sessions := newFakeSessions()
	sessions.sessions["sess-1"] = &domain.Session{SessionID: "sess-1", UserID: "user-1", Name: "Existing"}
	sessions.turnCounts["sess-1"] = 2
	agent := &fakeAgent{answer: "ok"}
	svc := newChat(t, sessions, newFakeStatusStore(), agent)

	_, err := svc.Chat(context.Background(), ChatInput{
		UserID: "user-1", Prompt: "follow-up", SessionID: "sess-1",
	})
	require.NoError(t, err)
	require.Empty(t, agent.summarized)
	require.Empty(t, sessions.named)
}

func TestChatNamingFailureFallsBack(t *testing.T) {
	sessions := newFakeSessions()
	agent := &fakeAgent{answer: "ok", summarizeErr: errors.New("model unavailable")}
	svc := newChat(t, sessions, newFakeStatusStore(), agent)

	out, err := svc.Chat(context.Background(), ChatInput{
		UserID: "user-1", Prompt: "hello", SessionID: "sess-1",
	})
	require.NoError(t, err)
	require.Equal(t, "ok", out.Answer)
	require.Equal(t, "New Chat", sessions.named["sess-1"])
}

func TestChatTruncatesLongGeneratedNames(t *testing.T) {
	sessions := newFakeSessions()
	long := strings.Repeat("a", 60)
	agent := &fakeAgent{answer: "ok", summary: long}
	svc := newChat(t, sessions, newFakeStatusStore(), agent)

	_, err := svc.Chat(context.Background(), ChatInput{
		UserID: "user-1", Prompt: "hello", SessionID: "sess-1",
	})
	require.NoError(t, err)
	name := sessions.named["sess-1"]
	require.Len(t, name, 50)
	require.Equal(t, strings.Repeat("a", 47)+"...", name)
}

func TestChatAgentFailureIsUpstream(t *testing.T) {
	agent := &fakeAgent{runErr: errors.New("rate limited")}
	svc := newChat(t, newFakeSessions(), newFakeStatusStore(), agent)

	_, err := svc.Chat(context.Background(), ChatInput{
		UserID: "user-1", Prompt: "hello", SessionID: "sess-1",
	})
	require.Error(t, err)
	require.Equal(t, ErrorUpstream, CodeOf(err))
}

func TestChatSessionReadFailure(t *testing.T) {
	sessions := newFakeSessions()
	sessions.getErr = errors.New("throttled")
	svc := newChat(t, sessions, newFakeStatusStore(), &fakeAgent{})

	_, err := svc.Chat(context.Background(), ChatInput{
		UserID: "user-1", Prompt: "hello", SessionID: "sess-1",
	})
	require.Error(t, err)
	require.Equal(t, ErrorInternal, CodeOf(err))
}

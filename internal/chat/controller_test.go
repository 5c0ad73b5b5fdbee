package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sherpa/internal/dialogue"
	"sherpa/internal/history"
	"sherpa/internal/locale"
	"sherpa/internal/reply"
	"sherpa/internal/session"
	"sherpa/internal/voice"
	"sherpa/internal/voice/voicetest"
)

type sent struct {
	Message  string
	UserName string
}

// fakeTransport records calls and answers through respond.
type fakeTransport struct {
	mu          sync.Mutex
	calls       []sent
	inFlight    int
	maxInFlight int
	started     chan string
	respond     func(ctx context.Context, message string) (*dialogue.Reply, error)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		started: make(chan string, 16),
		respond: func(_ context.Context, message string) (*dialogue.Reply, error) {
			return &dialogue.Reply{Text: "echo: " + message}, nil
		},
	}
}

func (f *fakeTransport) Send(ctx context.Context, message, userName string) (*dialogue.Reply, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sent{message, userName})
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	respond := f.respond
	f.mu.Unlock()

	f.started <- message
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()
	return respond(ctx, message)
}

func (f *fakeTransport) Calls() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.calls...)
}

type harness struct {
	c         *Controller
	store     *session.MemoryStore
	transport *fakeTransport
	rec       *voicetest.Recognizer
	synth     *voicetest.Synthesizer

	mu       sync.Mutex
	appended []history.Message
	states   []Snapshot
}

func newHarness(t *testing.T, saved session.Saved) *harness {
	t.Helper()

	h := &harness{
		store:     session.NewMemoryStore(),
		transport: newFakeTransport(),
		rec:       &voicetest.Recognizer{},
		synth:     &voicetest.Synthesizer{},
	}
	ctx := context.Background()
	if saved.UserName != "" {
		require.NoError(t, h.store.SaveName(ctx, saved.UserName))
	}
	if saved.Language != "" {
		require.NoError(t, h.store.SavePreferredLanguage(ctx, saved.Language))
	}

	c, err := New(Options{
		Store:         h.store,
		Transport:     h.transport,
		Voice:         voice.New(h.rec, h.synth, voice.CalmProfile),
		Language:      locale.English,
		ThinkingDelay: -1,
		Observer: ObserverFuncs{
			OnMessage: func(m history.Message) {
				h.mu.Lock()
				h.appended = append(h.appended, m)
				h.mu.Unlock()
			},
			OnState: func(s Snapshot) {
				h.mu.Lock()
				h.states = append(h.states, s)
				h.mu.Unlock()
			},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	h.c = c
	require.NoError(t, c.Start(ctx))
	h.flush(t)
	return h
}

func (h *harness) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.c.Flush(ctx))
}

func (h *harness) texts() []string {
	var out []string
	for _, m := range h.c.History() {
		out = append(out, m.Text)
	}
	return out
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{Transport: newFakeTransport()})
	assert.Error(t, err)

	_, err = New(Options{Store: session.NewMemoryStore()})
	assert.Error(t, err)
}

func TestOperationsBeforeStart(t *testing.T) {
	c, err := New(Options{Store: session.NewMemoryStore(), Transport: newFakeTransport()})
	require.NoError(t, err)
	defer c.Close()

	assert.ErrorIs(t, c.Submit("hello"), ErrNotStarted)
	assert.NoError(t, c.Flush(context.Background()))
}

func TestFreshStartAsksForName(t *testing.T) {
	h := newHarness(t, session.Saved{})

	snap := h.c.Snapshot()
	assert.Equal(t, AwaitingName, snap.Phase)
	assert.Equal(t, Idle, snap.Request)
	assert.Equal(t, []string{locale.Text(locale.English, locale.AskName)}, h.texts())
	assert.Equal(t, history.KindPrompt, h.c.History()[0].Kind)
	assert.Empty(t, h.synth.Texts(), "the opening message is display only")
}

func TestSavedSessionWelcomesBack(t *testing.T) {
	h := newHarness(t, session.Saved{UserName: "Ana", Language: locale.Spanish})

	snap := h.c.Snapshot()
	assert.Equal(t, Ready, snap.Phase)
	assert.Equal(t, session.Session{UserName: "Ana", Language: locale.Spanish}, snap.Session)
	assert.Equal(t, []string{"¡Bienvenido de nuevo, Ana!"}, h.texts())
}

func TestOnboardingCapturesName(t *testing.T) {
	h := newHarness(t, session.Saved{})

	require.NoError(t, h.c.Submit("  Maria "))
	h.flush(t)

	msgs := h.c.History()
	require.Len(t, msgs, 3)
	assert.Equal(t, history.User, msgs[1].Sender)
	assert.Equal(t, "Maria", msgs[1].Text)
	assert.Equal(t, history.Bot, msgs[2].Sender)
	assert.Equal(t, history.KindGreeting, msgs[2].Kind)
	assert.Contains(t, msgs[2].Text, "Maria")

	snap := h.c.Snapshot()
	assert.Equal(t, Ready, snap.Phase)
	assert.Equal(t, "Maria", snap.Session.UserName)
	assert.Empty(t, h.transport.Calls())
	assert.Equal(t, []string{msgs[2].Text}, h.synth.Texts())

	saved, err := h.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Maria", saved.UserName)
}

func TestGreetingWaitsForThinkingDelay(t *testing.T) {
	store := session.NewMemoryStore()
	c, err := New(Options{
		Store:         store,
		Transport:     newFakeTransport(),
		Language:      locale.English,
		ThinkingDelay: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Submit("Maria"))

	assert.Eventually(t, func() bool { return c.Snapshot().Thinking }, time.Second, time.Millisecond)

	require.NoError(t, c.Flush(context.Background()))
	assert.False(t, c.Snapshot().Thinking)
	assert.Len(t, c.History(), 3)
}

func TestSubmitSendsMessageAndUserName(t *testing.T) {
	h := newHarness(t, session.Saved{UserName: "Ana"})
	h.c.SetDraft("hello there")

	require.NoError(t, h.c.Submit("hello there"))
	h.flush(t)

	assert.Equal(t, []sent{{"hello there", "Ana"}}, h.transport.Calls())
	assert.Empty(t, h.c.Draft())

	msgs := h.c.History()
	require.Len(t, msgs, 3)
	assert.Equal(t, history.User, msgs[1].Sender)
	assert.Equal(t, "echo: hello there", msgs[2].Text)
	assert.Equal(t, Idle, h.c.Snapshot().Request)
	assert.Equal(t, []string{"echo: hello there"}, h.synth.Texts())
}

func TestReplyIsFormattedIntoBlocks(t *testing.T) {
	h := newHarness(t, session.Saved{UserName: "Ana"})
	h.transport.respond = func(context.Context, string) (*dialogue.Reply, error) {
		return &dialogue.Reply{Text: "Key facts:\n- Rest matters\n- https://example.org"}, nil
	}

	require.NoError(t, h.c.Submit("tell me"))
	h.flush(t)

	msgs := h.c.History()
	require.Len(t, msgs, 3)
	assert.Equal(t, []reply.Block{
		{Kind: reply.Heading, Text: "Key facts"},
		{Kind: reply.Bullet, Text: "Rest matters"},
		{Kind: reply.Link, Text: "https://example.org", Href: "https://example.org"},
	}, msgs[2].Blocks)
	assert.Equal(t, []string{"Key facts:\n- Rest matters\n- https://example.org"}, h.synth.Texts(),
		"the raw reply text is spoken")
}

func TestTransportFailureAppendsOneErrorMessage(t *testing.T) {
	h := newHarness(t, session.Saved{UserName: "Ana"})
	h.transport.respond = func(context.Context, string) (*dialogue.Reply, error) {
		return nil, &dialogue.TransportError{Op: "chat", StatusCode: 500, Err: errors.New("boom")}
	}

	require.NoError(t, h.c.Submit("hello"))
	h.flush(t)

	msgs := h.c.History()
	require.Len(t, msgs, 3)
	assert.Equal(t, history.KindError, msgs[2].Kind)
	assert.Equal(t, "Error connecting to server.", msgs[2].Text)
	assert.Equal(t, Idle, h.c.Snapshot().Request)
	assert.Len(t, h.transport.Calls(), 1, "failures are not retried")
	assert.Equal(t, []string{"Error connecting to server."}, h.synth.Texts())
}

func TestTransportFailureIsSilentWhenVoiceDisabled(t *testing.T) {
	h := newHarness(t, session.Saved{UserName: "Ana"})
	h.c.SetVoiceEnabled(false)
	h.transport.respond = func(context.Context, string) (*dialogue.Reply, error) {
		return nil, errors.New("connection refused")
	}

	require.NoError(t, h.c.Submit("hello"))
	h.flush(t)

	assert.Len(t, h.c.History(), 3)
	assert.Empty(t, h.synth.Texts())
	assert.False(t, h.c.Snapshot().VoiceEnabled)
}

func TestBlankSubmitIsIgnored(t *testing.T) {
	for _, phase := range []session.Saved{{}, {UserName: "Ana"}} {
		h := newHarness(t, phase)
		before := h.c.Snapshot()

		for _, text := range []string{"", "   ", "\n\t"} {
			assert.ErrorIs(t, h.c.Submit(text), ErrEmptyMessage)
		}
		h.flush(t)

		after := h.c.Snapshot()
		assert.Equal(t, before.Phase, after.Phase)
		assert.Len(t, after.Messages, 1)
		assert.Empty(t, h.transport.Calls())
	}
}

func TestQuickPromptBeforeNameAsksForName(t *testing.T) {
	h := newHarness(t, session.Saved{})

	require.NoError(t, h.c.SubmitPrompt(0))
	h.flush(t)

	msgs := h.c.History()
	require.Len(t, msgs, 2)
	assert.Equal(t, history.KindNotice, msgs[1].Kind)
	assert.Equal(t, "Please tell me your name first.", msgs[1].Text)
	assert.Equal(t, AwaitingName, h.c.Snapshot().Phase)
	assert.Empty(t, h.transport.Calls())
	assert.Empty(t, h.synth.Texts())
}

func TestQuickPromptWhenReady(t *testing.T) {
	h := newHarness(t, session.Saved{UserName: "Ana"})
	prompts := h.c.QuickPrompts()
	require.NotEmpty(t, prompts)

	require.NoError(t, h.c.SubmitPrompt(1))
	h.flush(t)

	assert.Equal(t, []sent{{prompts[1], "Ana"}}, h.transport.Calls())
	assert.Error(t, h.c.SubmitPrompt(len(prompts)))
	assert.Error(t, h.c.SubmitPrompt(-1))
}

func TestQueuedSubmitsAreAnsweredInOrder(t *testing.T) {
	h := newHarness(t, session.Saved{UserName: "Ana"})
	release := make(chan struct{})
	h.transport.respond = func(_ context.Context, message string) (*dialogue.Reply, error) {
		<-release
		return &dialogue.Reply{Text: "re: " + message}, nil
	}

	require.NoError(t, h.c.Submit("one"))
	<-h.transport.started
	require.NoError(t, h.c.Submit("two"))
	require.NoError(t, h.c.Submit("three"))

	snap := h.c.Snapshot()
	assert.Equal(t, Pending, snap.Request)
	assert.Equal(t, 2, snap.Queued)
	assert.Equal(t, []string{"one", "two", "three"}, h.texts()[1:], "user messages are appended immediately")

	close(release)
	h.flush(t)

	assert.Equal(t, []string{
		locale.Text(locale.English, locale.WelcomeBack, "Ana"),
		"one", "two", "three",
		"re: one", "re: two", "re: three",
	}, h.texts())
	assert.Equal(t, 1, h.transport.maxInFlight)
}

func TestResetDiscardsLateReply(t *testing.T) {
	h := newHarness(t, session.Saved{UserName: "Ana", Language: locale.Spanish})
	release := make(chan struct{})
	h.transport.respond = func(context.Context, string) (*dialogue.Reply, error) {
		<-release
		return &dialogue.Reply{Text: "too late"}, nil
	}

	require.NoError(t, h.c.Submit("hello"))
	<-h.transport.started
	require.NoError(t, h.c.Submit("queued"))

	require.NoError(t, h.c.Reset(context.Background()))
	close(release)
	h.flush(t)

	snap := h.c.Snapshot()
	assert.Equal(t, AwaitingName, snap.Phase)
	assert.Equal(t, Idle, snap.Request)
	assert.Equal(t, session.Session{Language: locale.Spanish}, snap.Session, "the language preference survives reset")
	assert.Equal(t, []string{locale.Text(locale.Spanish, locale.AskName)}, h.texts())
	assert.Len(t, h.transport.Calls(), 1, "queued requests are dropped")

	saved, err := h.store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, saved.UserName)
	assert.Equal(t, locale.Spanish, saved.Language)
}

func TestResetPublishesEmptyHistory(t *testing.T) {
	h := newHarness(t, session.Saved{UserName: "Ana"})
	require.NoError(t, h.c.Submit("hello"))
	h.flush(t)
	before := h.c.Snapshot().ConversationID

	require.NoError(t, h.c.Reset(context.Background()))
	h.flush(t)

	h.mu.Lock()
	defer h.mu.Unlock()
	var sawEmpty bool
	for _, s := range h.states {
		if s.ConversationID != before && s.Phase == AwaitingName && len(s.Messages) == 0 {
			sawEmpty = true
		}
	}
	assert.True(t, sawEmpty)
}

func TestResetKeepsMessageIDsIncreasing(t *testing.T) {
	h := newHarness(t, session.Saved{UserName: "Ana"})
	last := h.c.History()[0].ID

	require.NoError(t, h.c.Reset(context.Background()))
	h.flush(t)

	msgs := h.c.History()
	require.Len(t, msgs, 1)
	assert.Greater(t, msgs[0].ID, last)
}

func TestResetCancelsVoice(t *testing.T) {
	h := newHarness(t, session.Saved{UserName: "Ana"})
	require.NoError(t, h.c.Submit("hello"))
	h.flush(t)
	require.True(t, h.c.Snapshot().Voice.Speaking)

	require.NoError(t, h.c.Reset(context.Background()))

	assert.Equal(t, voice.State{}, h.c.Snapshot().Voice)
}

func TestReplyLanguageIsReconciled(t *testing.T) {
	h := newHarness(t, session.Saved{UserName: "Ana"})
	langs := []locale.Language{locale.Spanish, "", locale.Italian}
	var i int
	h.transport.respond = func(context.Context, string) (*dialogue.Reply, error) {
		l := langs[i]
		i++
		return &dialogue.Reply{Text: "ok", Lang: l}, nil
	}

	require.NoError(t, h.c.Submit("hola"))
	h.flush(t)
	assert.Equal(t, locale.Spanish, h.c.Snapshot().Session.Language)
	u, ok := h.synth.Last()
	require.True(t, ok)
	assert.Equal(t, "es-ES", u.Lang)

	require.NoError(t, h.c.Submit("?"))
	h.flush(t)
	assert.Equal(t, locale.Spanish, h.c.Snapshot().Session.Language, "a reply without language keeps the current one")

	require.NoError(t, h.c.Submit("ciao"))
	h.flush(t)
	assert.Equal(t, locale.Italian, h.c.Snapshot().Session.Language)

	saved, err := h.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, locale.Italian, saved.Language)
}

func TestSetLanguage(t *testing.T) {
	h := newHarness(t, session.Saved{UserName: "Ana"})

	assert.Error(t, h.c.SetLanguage("de"))
	require.NoError(t, h.c.SetLanguage(locale.Italian))

	assert.Equal(t, locale.QuickPrompts(locale.Italian), h.c.QuickPrompts())
	saved, err := h.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, locale.Italian, saved.Language)
}

func TestTranscriptIsSubmitted(t *testing.T) {
	h := newHarness(t, session.Saved{UserName: "Ana", Language: locale.Italian})

	require.NoError(t, h.c.Listen())
	assert.True(t, h.c.Snapshot().Voice.Listening)
	require.Len(t, h.rec.Opts, 1)
	assert.Equal(t, "it-IT", h.rec.Opts[0].Lang)

	h.rec.Hear("come stai")
	h.flush(t)

	assert.Equal(t, []sent{{"come stai", "Ana"}}, h.transport.Calls())
	assert.False(t, h.c.Snapshot().Voice.Listening)
}

func TestListenStopsSpeechAndSpeechStopsListening(t *testing.T) {
	h := newHarness(t, session.Saved{UserName: "Ana"})
	release := make(chan struct{})
	h.transport.respond = func(context.Context, string) (*dialogue.Reply, error) {
		<-release
		return &dialogue.Reply{Text: "a long answer"}, nil
	}

	require.NoError(t, h.c.Submit("first"))
	<-h.transport.started
	require.NoError(t, h.c.Listen())
	require.True(t, h.c.Snapshot().Voice.Listening)

	close(release)
	h.flush(t)

	st := h.c.Snapshot().Voice
	assert.True(t, st.Speaking)
	assert.False(t, st.Listening)

	require.NoError(t, h.c.Listen())
	st = h.c.Snapshot().Voice
	assert.True(t, st.Listening)
	assert.False(t, st.Speaking)
}

func TestRecognitionErrorProducesNoMessage(t *testing.T) {
	h := newHarness(t, session.Saved{UserName: "Ana"})

	require.NoError(t, h.c.Listen())
	h.rec.Fail(&voice.RecognitionError{Reason: voice.NoSpeech})
	h.flush(t)

	assert.Len(t, h.c.History(), 1)
	assert.False(t, h.c.Snapshot().Voice.Listening)
}

func TestListenWithoutRecognizer(t *testing.T) {
	c, err := New(Options{Store: session.NewMemoryStore(), Transport: newFakeTransport()})
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Start(context.Background()))

	assert.ErrorIs(t, c.Listen(), voice.ErrUnsupported)
	snap := c.Snapshot()
	assert.False(t, snap.CanListen)
	assert.False(t, snap.CanSpeak)
}

func TestSpeechControls(t *testing.T) {
	h := newHarness(t, session.Saved{UserName: "Ana"})
	require.NoError(t, h.c.Submit("hello"))
	h.flush(t)

	h.c.PauseSpeech()
	assert.Equal(t, voice.State{Speaking: true, Paused: true}, h.c.Snapshot().Voice)
	h.c.ResumeSpeech()
	assert.Equal(t, voice.State{Speaking: true}, h.c.Snapshot().Voice)
	h.c.StopSpeech()
	assert.Equal(t, voice.State{}, h.c.Snapshot().Voice)
}

func TestObserverSeesMessagesInOrder(t *testing.T) {
	h := newHarness(t, session.Saved{UserName: "Ana"})
	require.NoError(t, h.c.Submit("one"))
	require.NoError(t, h.c.Submit("two"))
	h.flush(t)

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, h.c.History(), h.appended)
	require.NotEmpty(t, h.states)
	assert.Equal(t, Idle, h.states[len(h.states)-1].Request)
}

func TestCloseStopsWork(t *testing.T) {
	h := newHarness(t, session.Saved{UserName: "Ana"})
	h.transport.respond = func(ctx context.Context, _ string) (*dialogue.Reply, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	require.NoError(t, h.c.Submit("hello"))
	<-h.transport.started

	require.NoError(t, h.c.Close())

	assert.Len(t, h.c.History(), 2, "the abandoned request adds no error message")
	assert.ErrorIs(t, h.c.Submit("again"), ErrClosed)
	assert.ErrorIs(t, h.c.Flush(context.Background()), ErrClosed)
	assert.NoError(t, h.c.Close())
}

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sherpa/internal/history"
	"sherpa/internal/locale"
	"sherpa/internal/metrics"
	"sherpa/internal/reply"
	"sherpa/internal/session"
	"sherpa/internal/voice"
)

// ErrNotStarted is returned by operations that need Start to have run.
var ErrNotStarted = errors.New("chat: controller not started")

// DefaultThinkingDelay is how long the onboarding greeting "thinks".
const DefaultThinkingDelay = 600 * time.Millisecond

const storeTimeout = 5 * time.Second

// Options configures a Controller.
type Options struct {
	Store     session.Store
	Transport Transport

	// Voice may be nil, in which case voice input and output are unavailable.
	Voice *voice.Voice

	// Observer may be nil.
	Observer Observer

	// Language is used until the store or the user says otherwise.
	Language locale.Language

	// ThinkingDelay precedes the locally synthesized greeting. Zero means
	// DefaultThinkingDelay; a negative value disables it.
	ThinkingDelay time.Duration
}

// Controller owns the conversation. All methods are safe for concurrent use.
type Controller struct {
	store     session.Store
	transport Transport
	voice     *voice.Voice
	observer  Observer
	delay     time.Duration
	fallback  locale.Language
	history   *history.Log

	mu       sync.Mutex
	log      zerolog.Logger
	convID   string
	phase    Phase
	request  RequestState
	thinking bool
	sess     session.Session
	draft    string
	started  bool
	closed   bool

	base       context.Context
	cancelBase context.CancelFunc
	gen        uint64
	genCtx     context.Context
	cancelGen  context.CancelFunc

	queue       []job
	busy        bool
	events      []event
	dirty       bool
	dispatching bool
	idle        chan struct{}

	wake   chan struct{}
	notify chan struct{}
	quit   chan struct{}
	wg     sync.WaitGroup
}

// New creates a controller. Call Start to load the session and open the
// conversation.
func New(opts Options) (*Controller, error) {
	if opts.Store == nil {
		return nil, errors.New("chat: session store is required")
	}
	if opts.Transport == nil {
		return nil, errors.New("chat: transport is required")
	}
	if opts.Voice == nil {
		opts.Voice = voice.New(nil, nil, voice.CalmProfile)
	}
	if opts.Observer == nil {
		opts.Observer = ObserverFuncs{}
	}
	if !opts.Language.Valid() {
		opts.Language = locale.Default
	}
	switch {
	case opts.ThinkingDelay == 0:
		opts.ThinkingDelay = DefaultThinkingDelay
	case opts.ThinkingDelay < 0:
		opts.ThinkingDelay = 0
	}

	c := &Controller{
		store:     opts.Store,
		transport: opts.Transport,
		voice:     opts.Voice,
		observer:  opts.Observer,
		delay:     opts.ThinkingDelay,
		fallback:  opts.Language,
		history:   history.NewLog(),
		phase:     AwaitingName,
		request:   Idle,
		sess:      session.Session{Language: opts.Language},
		wake:      make(chan struct{}, 1),
		notify:    make(chan struct{}, 1),
		quit:      make(chan struct{}),
	}
	c.newConversationLocked()
	c.voice.Listener.OnTranscript(c.onTranscript)
	return c, nil
}

// Start hydrates the session from the store and enqueues the opening
// message. ctx bounds the lifetime of the whole conversation.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.base, c.cancelBase = context.WithCancel(ctx)
	c.genCtx, c.cancelGen = context.WithCancel(c.base)

	saved, err := c.store.Load(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to load saved session, starting fresh")
	}
	c.sess = session.Session{UserName: saved.UserName, Language: c.fallback}
	if saved.Language != "" {
		c.sess.Language = saved.Language
	}
	c.phase = AwaitingName
	if c.sess.Onboarded() {
		c.phase = Ready
	}

	c.log.Info().
		Str("phase", string(c.phase)).
		Str("lang", string(c.sess.Language)).
		Bool("restored", !saved.Empty()).
		Msg("Conversation started")

	c.dirty = true
	c.enqueueLocked(jobOpening, "")
	c.wg.Add(2)
	go c.work()
	go c.dispatch()
	c.unlock()
	return nil
}

// Close abandons queued and in-flight work and silences voice. It waits for
// the background goroutines to exit.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.cancelBase != nil {
		c.cancelBase()
	}
	close(c.quit)
	if c.idle != nil {
		close(c.idle)
		c.idle = nil
	}
	c.mu.Unlock()

	c.wg.Wait()
	c.voice.Shutdown()
	return nil
}

// Submit sends text as the user. While the name is unknown the text becomes
// the name; otherwise it is queued for the dialogue service. Blank text
// returns ErrEmptyMessage and changes nothing.
func (c *Controller) Submit(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	defer c.unlock()
	if err := c.usableLocked(); err != nil {
		return err
	}
	c.submitLocked(trimmed)
	return nil
}

func (c *Controller) submitLocked(text string) {
	c.appendLocked(history.Message{Text: text, Sender: history.User})
	c.draft = ""

	if c.phase == AwaitingName {
		c.sess.UserName = text
		c.phase = Ready
		c.dirty = true
		c.log.Info().Str("user", text).Msg("Display name captured")

		ctx, cancel := context.WithTimeout(c.base, storeTimeout)
		if err := c.store.SaveName(ctx, text); err != nil {
			c.log.Warn().Err(err).Msg("Failed to persist display name")
		}
		cancel()

		c.enqueueLocked(jobGreeting, "")
		return
	}

	c.enqueueLocked(jobRequest, text)
}

// QuickPrompts returns the suggested prompts in the session language.
func (c *Controller) QuickPrompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return locale.QuickPrompts(c.sess.Language)
}

// SubmitPrompt submits quick prompt index. Before the name is known it only
// asks for the name.
func (c *Controller) SubmitPrompt(index int) error {
	c.mu.Lock()
	defer c.unlock()
	if err := c.usableLocked(); err != nil {
		return err
	}

	prompts := locale.QuickPrompts(c.sess.Language)
	if index < 0 || index >= len(prompts) {
		return fmt.Errorf("chat: no quick prompt %d", index)
	}
	if c.phase == AwaitingName {
		c.appendBotLocked(locale.Text(c.sess.Language, locale.NameFirst), history.KindNotice)
		return nil
	}
	c.submitLocked(prompts[index])
	return nil
}

// Draft returns the unsent input buffer.
func (c *Controller) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// SetDraft replaces the unsent input buffer.
func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

// Reset starts the conversation over: queued and in-flight work is dropped,
// voice is silenced, the stored identity is forgotten and history is
// emptied. The opening message follows asynchronously.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.unlock()
	if err := c.usableLocked(); err != nil {
		return err
	}

	c.gen++
	c.cancelGen()
	c.genCtx, c.cancelGen = context.WithCancel(c.base)
	dropped := len(c.queue)
	c.queue = nil
	metrics.QueueDepth.Set(0)
	metrics.Resets.Inc()

	c.voice.Speaker.Cancel()
	c.voice.Listener.Abort()
	c.history.Reset()

	if err := c.store.Clear(ctx); err != nil {
		c.log.Warn().Err(err).Msg("Failed to clear saved identity")
	}
	lang := c.fallback
	if saved, err := c.store.Load(ctx); err != nil {
		c.log.Warn().Err(err).Msg("Failed to reload saved session")
		lang = c.sess.Language
	} else if saved.Language != "" {
		lang = saved.Language
	}

	c.log.Info().Int("dropped", dropped).Msg("Conversation reset")
	c.newConversationLocked()

	c.sess = session.Session{Language: lang}
	c.phase = AwaitingName
	c.request = Idle
	c.thinking = false
	c.draft = ""
	c.dirty = true

	c.enqueueLocked(jobOpening, "")
	return nil
}

// SetLanguage switches the session language and remembers the choice.
func (c *Controller) SetLanguage(lang locale.Language) error {
	if !lang.Valid() {
		return fmt.Errorf("chat: unsupported language %q", lang)
	}

	c.mu.Lock()
	defer c.unlock()
	if c.closed {
		return ErrClosed
	}
	c.setLanguageLocked(lang)
	return nil
}

func (c *Controller) setLanguageLocked(lang locale.Language) {
	if c.sess.Language == lang {
		return
	}
	c.sess.Language = lang
	c.dirty = true
	c.log.Debug().Str("lang", string(lang)).Msg("Language changed")

	base := c.base
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithTimeout(base, storeTimeout)
	defer cancel()
	if err := c.store.SavePreferredLanguage(ctx, lang); err != nil {
		c.log.Warn().Err(err).Msg("Failed to persist preferred language")
	}
}

// Listen starts one voice input session in the session language. Speech
// output stops first. It returns voice.ErrUnsupported when the host cannot
// recognize speech; recognition failures are not reported.
func (c *Controller) Listen() error {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	lang := c.sess.Language
	c.mu.Unlock()

	// recognizer callbacks re-enter Submit
	err := c.voice.Listen(lang)
	c.touch()

	var rerr *voice.RecognitionError
	if errors.As(err, &rerr) {
		c.log.Debug().Err(err).Msg("Listening did not start")
		return nil
	}
	return err
}

// StopListening asks the recognizer to finish the current session.
func (c *Controller) StopListening() {
	c.voice.Listener.Stop()
	c.touch()
}

// SetVoiceEnabled toggles spoken replies. Disabling stops current speech.
func (c *Controller) SetVoiceEnabled(enabled bool) {
	c.voice.Speaker.SetEnabled(enabled)
	c.touch()
}

// PauseSpeech pauses the current utterance.
func (c *Controller) PauseSpeech() {
	c.voice.Speaker.Pause()
	c.touch()
}

// ResumeSpeech resumes a paused utterance.
func (c *Controller) ResumeSpeech() {
	c.voice.Speaker.Resume()
	c.touch()
}

// StopSpeech cancels the current utterance.
func (c *Controller) StopSpeech() {
	c.voice.Speaker.Cancel()
	c.touch()
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// History returns a copy of the messages in order.
func (c *Controller) History() []history.Message {
	return c.history.Messages()
}

// Recent returns copies of the last limit messages.
func (c *Controller) Recent(limit int) []history.Message {
	return c.history.Recent(limit)
}

// Flush blocks until every queued job has finished and every observer
// notification has been delivered.
func (c *Controller) Flush(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		if !c.started || c.quiescentLocked() {
			c.mu.Unlock()
			return nil
		}
		if c.idle == nil {
			c.idle = make(chan struct{})
		}
		idle := c.idle
		c.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Controller) onTranscript(transcript string) {
	err := c.Submit(transcript)
	if err != nil && !errors.Is(err, ErrEmptyMessage) {
		c.log.Debug().Err(err).Msg("Dropped voice transcript")
	}
}

func (c *Controller) usableLocked() error {
	if c.closed {
		return ErrClosed
	}
	if !c.started {
		return ErrNotStarted
	}
	return nil
}

func (c *Controller) newConversationLocked() {
	c.convID = uuid.NewString()
	c.log = log.With().Str("conversation", c.convID).Logger()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		ConversationID: c.convID,
		Phase:          c.phase,
		Request:        c.request,
		Thinking:       c.thinking,
		Session:        c.sess,
		Voice:          c.voice.State(),
		VoiceEnabled:   c.voice.Speaker.Enabled(),
		CanListen:      c.voice.Listener.Available(),
		CanSpeak:       c.voice.Speaker.Available(),
		Queued:         len(c.queue),
		Messages:       c.history.Messages(),
	}
}

func (c *Controller) appendLocked(msg history.Message) history.Message {
	stored := c.history.Append(msg)
	metrics.MessagesAppended.WithLabelValues(string(stored.Sender), string(stored.Kind)).Inc()
	c.events = append(c.events, event{msg: &stored})
	c.dirty = true
	return stored
}

func (c *Controller) appendBotLocked(text string, kind history.Kind) history.Message {
	return c.appendLocked(history.Message{
		Text:   text,
		Sender: history.Bot,
		Kind:   kind,
		Blocks: reply.Format(text),
	})
}

// touch publishes a state change caused outside the controller lock.
func (c *Controller) touch() {
	c.mu.Lock()
	c.dirty = c.started && !c.closed
	c.unlock()
}

// unlock queues a state notification if anything changed, releases the
// lock and wakes the dispatcher.
func (c *Controller) unlock() {
	if c.dirty {
		snap := c.snapshotLocked()
		c.events = append(c.events, event{snap: &snap})
		c.dirty = false
	}
	pending := len(c.events) > 0 && c.started
	c.settleLocked()
	c.mu.Unlock()

	if pending {
		signal(c.notify)
	}
}

func (c *Controller) quiescentLocked() bool {
	return len(c.queue) == 0 && !c.busy && len(c.events) == 0 && !c.dispatching
}

func (c *Controller) settleLocked() {
	if c.idle != nil && c.quiescentLocked() {
		close(c.idle)
		c.idle = nil
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

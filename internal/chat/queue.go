package chat

import (
	"errors"
	"time"

	"sherpa/internal/dialogue"
	"sherpa/internal/history"
	"sherpa/internal/locale"
	"sherpa/internal/metrics"
	"sherpa/internal/reply"
)

type jobKind int

const (
	jobOpening  jobKind = iota // "what is your name" or "welcome back"
	jobGreeting                // local reply to the captured name
	jobRequest                 // dialogue service round trip
)

func (k jobKind) String() string {
	switch k {
	case jobOpening:
		return "opening"
	case jobGreeting:
		return "greeting"
	default:
		return "request"
	}
}

// job is one unit of bot work. Jobs run one at a time in FIFO order; a job
// whose generation is no longer current has no effect.
type job struct {
	kind jobKind
	gen  uint64
	text string
}

// event is one observer notification: either msg or snap is set.
type event struct {
	msg  *history.Message
	snap *Snapshot
}

func (c *Controller) enqueueLocked(kind jobKind, text string) {
	c.queue = append(c.queue, job{kind: kind, gen: c.gen, text: text})
	metrics.QueueDepth.Set(float64(len(c.queue)))
	c.dirty = true
	signal(c.wake)
}

// work drains the queue until Close.
func (c *Controller) work() {
	defer c.wg.Done()

	for {
		c.mu.Lock()
		if c.closed {
			c.busy = false
			c.mu.Unlock()
			return
		}
		if len(c.queue) == 0 {
			c.busy = false
			if c.request != Idle || c.thinking {
				c.request, c.thinking = Idle, false
				c.dirty = true
			}
			c.unlock()

			select {
			case <-c.wake:
				continue
			case <-c.quit:
				return
			}
		}

		j := c.queue[0]
		c.queue = c.queue[1:]
		c.busy = true
		metrics.QueueDepth.Set(float64(len(c.queue)))
		c.mu.Unlock()

		switch j.kind {
		case jobOpening:
			c.open(j)
		case jobGreeting:
			c.greet(j)
		case jobRequest:
			c.ask(j)
		}
	}
}

// currentLocked reports whether j still belongs to the live conversation.
func (c *Controller) currentLocked(j job) bool {
	if c.closed || j.gen != c.gen {
		c.log.Debug().Stringer("job", j.kind).Msg("Discarding stale job")
		return false
	}
	return true
}

func (c *Controller) open(j job) {
	c.mu.Lock()
	defer c.unlock()
	if !c.currentLocked(j) {
		return
	}

	lang := c.sess.Language
	text := locale.Text(lang, locale.AskName)
	if c.sess.Onboarded() {
		text = locale.Text(lang, locale.WelcomeBack, c.sess.UserName)
	}
	c.appendBotLocked(text, history.KindPrompt)
}

func (c *Controller) greet(j job) {
	c.mu.Lock()
	if !c.currentLocked(j) {
		c.unlock()
		return
	}
	ctx := c.genCtx
	if c.delay > 0 {
		c.thinking = true
		c.dirty = true
	}
	c.unlock()

	if c.delay > 0 {
		timer := time.NewTimer(c.delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}

	c.mu.Lock()
	defer c.unlock()
	if !c.currentLocked(j) {
		return
	}
	c.thinking = false
	c.dirty = true

	text := locale.Text(c.sess.Language, locale.Greeting, c.sess.UserName)
	c.appendBotLocked(text, history.KindGreeting)
	c.voice.Speak(text, c.sess.Language)
}

func (c *Controller) ask(j job) {
	c.mu.Lock()
	if !c.currentLocked(j) {
		c.unlock()
		return
	}
	ctx := c.genCtx
	name := c.sess.UserName
	logger := c.log
	c.request = Pending
	c.thinking = true
	c.dirty = true
	c.unlock()

	logger.Debug().Str("message", j.text).Msg("Sending message to dialogue service")
	start := time.Now()
	res, err := c.transport.Send(ctx, j.text, name)
	if err == nil && res == nil {
		err = &dialogue.TransportError{Op: "chat", Err: errors.New("empty reply")}
	}

	c.mu.Lock()
	defer c.unlock()
	if !c.currentLocked(j) {
		return
	}
	c.thinking = false
	c.dirty = true

	if err != nil {
		logEvent := c.log.Warn().Err(err).Dur("elapsed", time.Since(start))
		var terr *dialogue.TransportError
		if errors.As(err, &terr) && terr.StatusCode != 0 {
			logEvent = logEvent.Int("status", terr.StatusCode)
		}
		logEvent.Msg("Dialogue request failed")

		text := locale.Text(c.sess.Language, locale.ServerError)
		c.appendBotLocked(text, history.KindError)
		c.voice.Speak(text, c.sess.Language)
		return
	}

	c.log.Debug().
		Dur("elapsed", time.Since(start)).
		Str("lang", string(res.Lang)).
		Msg("Dialogue reply received")

	c.appendLocked(history.Message{
		Text:   res.Text,
		Sender: history.Bot,
		Kind:   history.KindChat,
		Blocks: reply.Format(res.Text),
	})
	if res.Lang != "" {
		c.setLanguageLocked(res.Lang)
	}
	c.voice.Speak(res.Text, c.sess.Language)
}

// dispatch delivers observer notifications in order until Close.
func (c *Controller) dispatch() {
	defer c.wg.Done()

	for {
		select {
		case <-c.notify:
		case <-c.quit:
			return
		}

		for {
			c.mu.Lock()
			events := c.events
			c.events = nil
			c.dispatching = len(events) > 0
			if !c.dispatching {
				c.settleLocked()
				c.mu.Unlock()
				break
			}
			c.mu.Unlock()

			for _, ev := range events {
				switch {
				case ev.msg != nil:
					c.observer.MessageAppended(*ev.msg)
				case ev.snap != nil:
					c.observer.StateChanged(*ev.snap)
				}
			}
		}
	}
}

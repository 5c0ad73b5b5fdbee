package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"sherpa/internal/chat"
	"sherpa/internal/history"
	"sherpa/internal/locale"
	"sherpa/internal/terminal"
	"sherpa/internal/ui"
	"sherpa/internal/voice"
)

// lineReader is satisfied by terminal.Reader.
type lineReader interface {
	ReadLine() (string, error)
}

// shell is the interactive terminal front end. It renders controller events
// and turns typed lines into controller calls.
type shell struct {
	display *ui.Display
	input   lineReader
	spinner *terminal.Spinner

	// interactive shows the input prompt; piped input runs without it.
	interactive bool
}

func newShell(display *ui.Display, input lineReader, spinner *terminal.Spinner) *shell {
	return &shell{display: display, input: input, spinner: spinner}
}

// MessageAppended prints every new message.
func (s *shell) MessageAppended(msg history.Message) {
	s.spinner.Stop()
	s.display.PrintMessage(msg)
}

// StateChanged drives the thinking spinner. Events arrive one at a time.
func (s *shell) StateChanged(snap chat.Snapshot) {
	switch active := s.spinner.Active(); {
	case snap.Thinking && !active:
		s.spinner.Start(locale.Text(snap.Session.Language, locale.Thinking))
	case !snap.Thinking && active:
		s.spinner.Stop()
	}
}

type lineResult struct {
	line string
	err  error
}

// run starts the conversation and processes input until /exit, end of
// input or cancellation. Input is never held back by a pending request:
// replies render through the observer as they arrive. At end of input the
// queue is drained first, so piped conversations get every reply.
func (s *shell) run(ctx context.Context, ctl *chat.Controller) error {
	if err := ctl.Start(ctx); err != nil {
		return err
	}
	s.welcome(ctl)
	if err := ctl.Flush(ctx); err != nil {
		return ignoreQuit(err)
	}

	lines := make(chan lineResult)
	go func() {
		for {
			line, err := s.input.ReadLine()
			select {
			case lines <- lineResult{line, err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		s.prompt(ctl)

		var res lineResult
		select {
		case res = <-lines:
		case <-ctx.Done():
			s.spinner.Stop()
			s.display.PrintGoodbye()
			return nil
		}
		if res.err != nil {
			if errors.Is(res.err, io.EOF) {
				if err := ctl.Flush(ctx); err != nil && !isQuit(err) {
					return err
				}
			}
			s.spinner.Stop()
			s.display.PrintGoodbye()
			return ignoreQuit(res.err)
		}

		quit, err := s.handle(ctx, ctl, res.line)
		if err != nil {
			s.display.PrintError(err)
		}
		if quit {
			s.spinner.Stop()
			s.display.PrintGoodbye()
			return nil
		}
	}
}

func (s *shell) welcome(ctl *chat.Controller) {
	snap := ctl.Snapshot()
	status := "off"
	switch {
	case !snap.CanSpeak:
		status = "unavailable"
	case snap.VoiceEnabled:
		status = "on"
	}
	s.display.PrintWelcome(string(snap.Session.Language), status)
}

func (s *shell) prompt(ctl *chat.Controller) {
	if !s.interactive {
		return
	}
	snap := ctl.Snapshot()
	key := locale.PlaceholderMessage
	if snap.Phase == chat.AwaitingName {
		key = locale.PlaceholderName
	}
	s.display.PrintPrompt(locale.Text(snap.Session.Language, key))
}

// handle executes one input line. quit is true when the user asked to leave.
func (s *shell) handle(ctx context.Context, ctl *chat.Controller, line string) (quit bool, err error) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/exit", "/quit":
		return true, nil
	case "/reset":
		if err := ctl.Reset(ctx); err != nil {
			return false, err
		}
		s.display.PrintSuccess("Conversation reset")
	case "/lang":
		lang, ok := locale.Parse(arg)
		if !ok {
			s.display.PrintWarning(fmt.Sprintf("Supported languages: %v", locale.Supported))
			return false, nil
		}
		if err := ctl.SetLanguage(lang); err != nil {
			return false, err
		}
		s.display.PrintSuccess("Language: " + string(lang))
	case "/voice":
		return false, s.toggleVoice(ctl, arg)
	case "/pause":
		ctl.PauseSpeech()
	case "/resume":
		ctl.ResumeSpeech()
	case "/stop":
		ctl.StopSpeech()
	case "/listen":
		if err := ctl.Listen(); errors.Is(err, voice.ErrUnsupported) {
			s.display.PrintInfo("Voice input is not available in the terminal")
		} else if err != nil {
			return false, err
		}
	case "/prompts":
		s.display.PrintPrompts(ctl.QuickPrompts())
	case "/prompt":
		n, convErr := strconv.Atoi(arg)
		if convErr != nil || n < 1 {
			s.display.PrintWarning("Usage: /prompt N (see /prompts)")
			return false, nil
		}
		if err := ctl.SubmitPrompt(n - 1); err != nil {
			return false, err
		}
	case "/history":
		if arg == "" {
			s.display.PrintHistory(ctl.History())
			return false, nil
		}
		n, convErr := strconv.Atoi(arg)
		if convErr != nil || n < 1 {
			s.display.PrintWarning("Usage: /history [N]")
			return false, nil
		}
		s.display.PrintHistory(ctl.Recent(n))
	case "/clear":
		s.display.ClearScreen()
		s.welcome(ctl)
	default:
		if strings.HasPrefix(cmd, "/") {
			s.display.PrintWarning(fmt.Sprintf("Unknown command %s", cmd))
			return false, nil
		}
		ctl.SetDraft(line)
		if err := ctl.Submit(line); err != nil && !errors.Is(err, chat.ErrEmptyMessage) {
			return false, err
		}
	}
	return false, nil
}

func (s *shell) toggleVoice(ctl *chat.Controller, arg string) error {
	var enabled bool
	switch strings.ToLower(arg) {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		s.display.PrintWarning("Usage: /voice on|off")
		return nil
	}

	ctl.SetVoiceEnabled(enabled)
	if enabled && !ctl.Snapshot().CanSpeak {
		s.display.PrintInfo("No speech synthesizer found (install espeak-ng)")
		return nil
	}
	s.display.PrintSuccess("Voice " + arg)
	return nil
}

func ignoreQuit(err error) error {
	if isQuit(err) {
		return nil
	}
	return err
}

package voice

import (
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// CommandSynthesizer speaks through a text-to-speech program such as
// espeak-ng or the macOS say command. Text is fed on stdin.
type CommandSynthesizer struct {
	command string
	flavor  string // "espeak" or "say"

	mu     sync.Mutex
	cmd    *exec.Cmd
	paused bool
}

// candidates are tried in order by DetectSynthesizer.
var candidates = []string{"espeak-ng", "espeak", "say"}

// lookPath is replaced in tests.
var lookPath = exec.LookPath

// DetectSynthesizer returns a synthesizer backed by preferred, or by the first
// known program found on PATH when preferred is empty. It returns
// ErrUnsupported when nothing usable is installed.
func DetectSynthesizer(preferred string) (*CommandSynthesizer, error) {
	names := candidates
	if preferred != "" {
		names = []string{preferred}
	}
	for _, name := range names {
		resolved, err := lookPath(name)
		if err != nil {
			continue
		}
		return NewCommandSynthesizer(resolved), nil
	}
	return nil, ErrUnsupported
}

// NewCommandSynthesizer wraps the program at path.
func NewCommandSynthesizer(path string) *CommandSynthesizer {
	flavor := "espeak"
	base := path[strings.LastIndexAny(path, `/\`)+1:]
	if base == "say" {
		flavor = "say"
	}
	return &CommandSynthesizer{command: path, flavor: flavor}
}

// Command returns the program path.
func (c *CommandSynthesizer) Command() string {
	return c.command
}

// args translates the utterance into command-line flags.
func (c *CommandSynthesizer) args(u Utterance) []string {
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	if c.flavor == "say" {
		// say has no per-utterance pitch or volume control.
		return []string{"-r", strconv.Itoa(int(175 * rate)), "-f", "-"}
	}

	pitch, volume := u.Pitch, u.Volume
	if pitch <= 0 {
		pitch = 1
	}
	if volume <= 0 {
		volume = 1
	}
	args := []string{"--stdin"}
	if voice := espeakVoice(u.Lang); voice != "" {
		args = append(args, "-v", voice)
	}
	return append(args,
		"-s", strconv.Itoa(int(175*rate)),
		"-p", strconv.Itoa(clamp(int(50*pitch), 0, 99)),
		"-a", strconv.Itoa(clamp(int(100*volume), 0, 200)),
	)
}

// espeakVoice maps a BCP-47 tag to an espeak voice name ("it-IT" -> "it").
func espeakVoice(tag string) string {
	base, _, _ := strings.Cut(tag, "-")
	return strings.ToLower(base)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Speak starts the program for u. Any process still running is killed first.
func (c *CommandSynthesizer) Speak(u Utterance, events UtteranceEvents) error {
	c.Cancel()

	cmd := exec.Command(c.command, c.args(u)...)
	cmd.Stdin = strings.NewReader(u.Text)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", c.command, err)
	}

	c.mu.Lock()
	c.cmd, c.paused = cmd, false
	c.mu.Unlock()

	if events.OnStart != nil {
		events.OnStart()
	}

	go func() {
		err := cmd.Wait()

		c.mu.Lock()
		if c.cmd == cmd {
			c.cmd, c.paused = nil, false
		}
		c.mu.Unlock()

		if err != nil {
			if events.OnError != nil {
				events.OnError(err)
			}
			return
		}
		if events.OnEnd != nil {
			events.OnEnd()
		}
	}()
	return nil
}

// Pause suspends the running process where the platform allows it.
func (c *CommandSynthesizer) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd == nil || c.paused {
		return
	}
	if suspend(c.cmd.Process) == nil {
		c.paused = true
	}
}

// Resume continues a suspended process.
func (c *CommandSynthesizer) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd == nil || !c.paused {
		return
	}
	if resume(c.cmd.Process) == nil {
		c.paused = false
	}
}

// Cancel kills the running process, if any.
func (c *CommandSynthesizer) Cancel() {
	c.mu.Lock()
	cmd := c.cmd
	c.cmd, c.paused = nil, false
	c.mu.Unlock()

	if cmd != nil {
		_ = cmd.Process.Kill()
	}
}

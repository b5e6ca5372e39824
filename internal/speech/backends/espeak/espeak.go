// Package espeak speaks through a local espeak-ng or espeak binary.
package espeak

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cheamigo/cheamigo/internal/registry"
	"github.com/cheamigo/cheamigo/internal/speech/engine"
)

func init() {
	registry.Synthesizers.Register("espeak", func(config map[string]string) (engine.Synthesizer, error) {
		return New(config["binary_path"], config["default_voice"]), nil
	})
}

const (
	baseWordsPerMinute = 175
	maxAmplitude       = 200
	maxPitch           = 99
)

// Synthesizer runs one espeak process per utterance. CancelAll kills every
// running process.
type Synthesizer struct {
	binary       string
	defaultVoice string

	voicesOnce sync.Once
	voices     []engine.Voice

	mu      sync.Mutex
	running map[string]*process
	closed  bool
}

type process struct {
	cmd      *exec.Cmd
	canceled bool
}

// New creates an espeak platform. An empty binary tries espeak-ng, then
// espeak, from PATH. defaultVoice is the voice file (for example
// "roa/es-419") flagged as the platform default.
func New(binary, defaultVoice string) *Synthesizer {
	if binary == "" {
		binary = lookupBinary()
	}
	return &Synthesizer{
		binary:       binary,
		defaultVoice: defaultVoice,
		running:      make(map[string]*process),
	}
}

func lookupBinary() string {
	for _, bin := range []string{"espeak-ng", "espeak"} {
		if path, err := exec.LookPath(bin); err == nil {
			return path
		}
	}
	return ""
}

// Available reports whether a usable binary was found.
func (s *Synthesizer) Available() bool {
	if s.binary == "" {
		return false
	}
	_, err := exec.LookPath(s.binary)
	return err == nil
}

// Voices lists the installed voices. The list is read once; espeak has no
// asynchronous voice loading.
func (s *Synthesizer) Voices() []engine.Voice {
	s.voicesOnce.Do(func() {
		if !s.Available() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		out, err := exec.CommandContext(ctx, s.binary, "--voices").Output()
		if err != nil {
			slog.Warn("espeak voice listing failed", slog.String("error", err.Error()))
			return
		}
		s.voices = parseVoices(bytes.NewReader(out), s.defaultVoice)
	})
	out := make([]engine.Voice, len(s.voices))
	copy(out, s.voices)
	return out
}

// OnVoicesChanged never fires; the voice list is static.
func (s *Synthesizer) OnVoicesChanged(func()) func() { return func() {} }

// Speak starts espeak for u and returns a channel resolved when the
// process exits.
func (s *Synthesizer) Speak(u engine.Utterance) <-chan error {
	done := make(chan error, 1)

	cmd := exec.Command(s.binary, Args(u)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		done <- engine.NewSynthesisError(engine.CodeSynthesisUnavailable, u, errors.New("platform closed"))
		return done
	}
	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		done <- engine.NewSynthesisError(engine.CodeSynthesisUnavailable, u, err)
		return done
	}
	p := &process{cmd: cmd}
	s.running[u.ID] = p
	s.mu.Unlock()

	go func() {
		err := cmd.Wait()

		s.mu.Lock()
		delete(s.running, u.ID)
		canceled := p.canceled
		s.mu.Unlock()

		switch {
		case canceled:
			done <- engine.NewSynthesisError(engine.CodeCanceled, u, nil)
		case err != nil:
			msg := strings.TrimSpace(stderr.String())
			if msg != "" {
				err = fmt.Errorf("%w: %s", err, msg)
			}
			done <- engine.NewSynthesisError(engine.CodeSynthesisFailed, u, err)
		default:
			done <- nil
		}
	}()

	return done
}

// CancelAll kills every running utterance.
func (s *Synthesizer) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.running {
		p.canceled = true
		if err := p.cmd.Process.Kill(); err != nil {
			slog.Debug("espeak kill failed", slog.String("utterance", id), slog.String("error", err.Error()))
		}
	}
}

// Close cancels running utterances and rejects new ones.
func (s *Synthesizer) Close() error {
	s.CancelAll()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Args builds the espeak command line for u.
func Args(u engine.Utterance) []string {
	voice := u.Language
	if u.Voice != nil && u.Voice.Language != "" {
		voice = u.Voice.Language
	}

	args := []string{
		"-a", strconv.Itoa(int(math.Round(u.Volume * maxAmplitude))),
		"-s", strconv.Itoa(int(math.Round(u.Rate * baseWordsPerMinute))),
		"-p", strconv.Itoa(min(maxPitch, int(math.Round(u.Pitch*50)))),
	}
	if voice != "" {
		args = append(args, "-v", voice)
	}
	return append(args, "--", u.Text)
}

// parseVoices reads the table printed by "espeak --voices":
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  es-419          --/M      Spanish_(Latin_America) roa/es-419
func parseVoices(r io.Reader, defaultVoice string) []engine.Voice {
	var out []engine.Voice
	sc := bufio.NewScanner(r)
	header := true
	for sc.Scan() {
		if header {
			header = false
			continue
		}
		f := strings.Fields(sc.Text())
		if len(f) < 5 {
			continue
		}
		v := engine.Voice{
			ID:       f[4],
			Name:     strings.ReplaceAll(f[3], "_", " "),
			Language: f[1],
		}
		v.Default = defaultVoice != "" && (v.ID == defaultVoice || v.Language == defaultVoice)
		out = append(out, v)
	}
	return out
}

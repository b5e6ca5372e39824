// Package ws serves browser sessions over a WebSocket. Each connection gets
// its own assistant whose speech platform is the browser's Web Speech API.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pitabwire/frame/workerpool"
	"github.com/pitabwire/util"
	"golang.org/x/sync/errgroup"

	"github.com/cheamigo/cheamigo/internal/assistant"
	"github.com/cheamigo/cheamigo/internal/speech/backends/browser"
	"github.com/cheamigo/cheamigo/internal/speech/player"
	"github.com/cheamigo/cheamigo/internal/speech/voices"
	"github.com/cheamigo/cheamigo/internal/vision/describe"
	"github.com/cheamigo/cheamigo/pkg/events"
	"github.com/cheamigo/cheamigo/pkg/phrases"
)

const (
	defaultHelloTimeout = 10 * time.Second
	pongWait            = 60 * time.Second
	pingPeriod          = pongWait * 9 / 10
	writeWait           = 10 * time.Second
	maxMessageSize      = 8 << 20
	outboxSize          = 32
)

var errSessionClosed = errors.New("session closed")

// PhraseSource returns the phrase set for a language. *phrases.Loader
// implements it.
type PhraseSource interface {
	Get(lang string) phrases.Set
}

// Config configures a Handler.
type Config struct {
	Describer describe.Describer
	Emitter   events.Emitter
	Phrases   PhraseSource
	Pool      workerpool.WorkerPool

	Language       string
	SystemLocale   string
	SubmitDelay    time.Duration
	VoicesFallback time.Duration
	HelloTimeout   time.Duration

	// CheckOrigin overrides the upgrader's origin check. Nil accepts any
	// origin.
	CheckOrigin func(r *http.Request) bool
}

// Handler upgrades requests and runs one session per connection.
type Handler struct {
	cfg      Config
	upgrader websocket.Upgrader
}

// NewHandler creates a WebSocket session handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Language == "" {
		cfg.Language = player.DefaultLanguage
	}
	if cfg.Emitter == nil {
		cfg.Emitter = events.Discard{}
	}
	if cfg.HelloTimeout <= 0 {
		cfg.HelloTimeout = defaultHelloTimeout
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(r.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	ctx := r.Context()
	hello, err := h.readHello(conn)
	if err != nil {
		util.Log(ctx).WithError(err).Error("ws session: handshake")
		_ = conn.WriteJSON(errorMessage{Type: TypeError, Code: "handshake", Message: err.Error()})
		return
	}

	s := h.newSession(conn, hello)
	s.remoteAddr = r.RemoteAddr
	s.run(ctx)
}

func (h *Handler) readHello(conn *websocket.Conn) (ClientMessage, error) {
	var hello ClientMessage
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.HelloTimeout))
	if err := conn.ReadJSON(&hello); err != nil {
		return hello, fmt.Errorf("read hello: %w", err)
	}
	if hello.Type != TypeHello {
		return hello, fmt.Errorf("expected %q as first message, got %q", TypeHello, hello.Type)
	}
	return hello, nil
}

type session struct {
	id   string
	conn *websocket.Conn
	cfg  Config
	out  chan any

	remoteAddr string
	locale     string

	// ctx is set before any goroutine that sends is started.
	ctx context.Context

	bridge    *browser.Bridge
	player    *player.Player
	assistant *assistant.Assistant
}

func (h *Handler) newSession(conn *websocket.Conn, hello ClientMessage) *session {
	s := &session{
		id:   uuid.NewString(),
		conn: conn,
		cfg:  h.cfg,
		out:  make(chan any, outboxSize),
	}

	s.bridge = browser.New(s.send, hello.Speech)
	if len(hello.Voices) > 0 {
		s.bridge.SetVoices(hello.Voices)
	}

	s.locale = hello.Locale
	if s.locale == "" {
		s.locale = h.cfg.SystemLocale
	}
	s.player = player.New(s.bridge, voices.NewCatalog(s.bridge, h.cfg.VoicesFallback), player.Config{
		SubmitDelay:  h.cfg.SubmitDelay,
		SystemLocale: s.locale,
	})

	set := phrases.Default()
	if h.cfg.Phrases != nil {
		set = h.cfg.Phrases.Get(h.cfg.Language)
	}
	s.assistant = assistant.New(s.player, h.cfg.Describer, assistant.Options{
		Language:  h.cfg.Language,
		SessionID: s.id,
		Phrases:   set,
		Emitter:   h.cfg.Emitter,
		OnNotice: func(_ context.Context, n assistant.Notice) {
			_ = s.send(noticeMessage{Type: TypeNotice, Title: n.Title, Message: n.Message, Variant: n.Variant})
		},
		OnStatus: func(st assistant.Status) {
			_ = s.send(statusMessage{Type: TypeStatus, Status: st})
		},
	})
	return s
}

func (s *session) run(parent context.Context) {
	g, ctx := errgroup.WithContext(parent)
	s.ctx = ctx
	log := slog.With(slog.String("session_id", s.id))

	log.InfoContext(ctx, "session opened", slog.Bool("speech", s.bridge.Available()))
	s.emit(ctx, events.SessionOpened)

	_ = s.send(welcomeMessage{Type: TypeWelcome, SessionID: s.id})
	_ = s.send(statusMessage{Type: TypeStatus, Status: s.assistant.Status()})

	g.Go(func() error { return s.writeLoop(ctx) })
	g.Go(func() error { return s.readLoop(ctx) })

	err := g.Wait()

	s.assistant.Close()
	_ = s.bridge.Close()

	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !errors.Is(err, context.Canceled) {
		log.WarnContext(parent, "session ended with error", slog.String("error", err.Error()))
	}
	log.InfoContext(parent, "session closed")
	s.emit(context.WithoutCancel(parent), events.SessionClosed)
}

func (s *session) readLoop(ctx context.Context) error {
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			return err
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.handle(ctx, msg)
	}
}

func (s *session) writeLoop(ctx context.Context) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			// Unblocks the read loop.
			_ = s.conn.Close()
			return ctx.Err()
		case msg := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

func (s *session) handle(ctx context.Context, msg ClientMessage) {
	switch msg.Type {
	case TypeVoices:
		s.bridge.SetVoices(msg.Voices)
	case TypeUtteranceEnd:
		s.bridge.Ended(msg.ID)
	case TypeUtteranceError:
		s.bridge.Failed(msg.ID, msg.Error)
	case TypeCamera:
		s.submit(ctx, func() {
			if msg.Ready {
				_ = s.assistant.CameraReady(ctx)
				return
			}
			_ = s.assistant.CameraFailed(ctx, msg.Error)
		})
	case TypeDetect:
		s.submit(ctx, func() { s.detect(ctx, msg.PhotoDataURI) })
	case TypeSettings:
		cur := s.assistant.Status().Settings
		if msg.Volume != nil {
			cur.Volume = *msg.Volume
		}
		if msg.Rate != nil {
			cur.Rate = *msg.Rate
		}
		s.assistant.UpdateSettings(cur)
	default:
		slog.DebugContext(ctx, "unknown ws message", slog.String("session_id", s.id), slog.String("type", msg.Type))
		_ = s.send(errorMessage{Type: TypeError, Code: "unknown-message", Message: fmt.Sprintf("unknown message type %q", msg.Type)})
	}
}

func (s *session) detect(ctx context.Context, photo string) {
	res, err := s.assistant.Detect(ctx, photo)
	switch {
	case errors.Is(err, assistant.ErrBusy):
		_ = s.send(errorMessage{Type: TypeError, Code: "busy", Message: err.Error()})
	case err != nil:
		// The assistant already reported it as a notice.
	default:
		msg := resultMessage{Type: TypeResult, Description: res.Description, Suppressed: res.Suppressed}
		if res.SpeechErr != nil {
			msg.SpeechError = res.SpeechErr.Error()
		}
		_ = s.send(msg)
	}
}

// submit runs fn off the read loop so utterance completions keep flowing
// while fn waits on speech.
func (s *session) submit(ctx context.Context, fn func()) {
	if s.cfg.Pool != nil {
		if err := s.cfg.Pool.Submit(ctx, fn); err == nil {
			return
		}
	}
	go fn()
}

func (s *session) send(msg any) error {
	select {
	case s.out <- msg:
		return nil
	case <-s.ctx.Done():
		return errSessionClosed
	}
}

func (s *session) emit(ctx context.Context, et events.EventType) {
	err := s.cfg.Emitter.Emit(ctx, et, s.id, events.SessionData{
		RemoteAddr: s.remoteAddr,
		Speech:     s.bridge.Available(),
		Locale:     s.locale,
	})
	if err != nil {
		slog.WarnContext(ctx, "event publish failed", slog.String("event_type", string(et)), slog.String("error", err.Error()))
	}
}

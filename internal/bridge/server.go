package bridge

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/anatolykoptev/go_interview/internal/auth"
	"github.com/anatolykoptev/go_interview/internal/engine"
	"github.com/anatolykoptev/go_interview/internal/engine/interview"
	"github.com/anatolykoptev/go_interview/internal/orchestrator"
)

const defaultHelloTimeout = 15 * time.Second

// Interviews is what a bridge session needs from the interview service.
type Interviews interface {
	orchestrator.Backend
	GetInterview(ctx context.Context, mockID string) (*interview.Interview, error)
	FollowUpsEnabled() bool
}

var _ Interviews = (*interview.Service)(nil)

// Server upgrades authenticated requests and runs one orchestrator per connection.
type Server struct {
	svc          Interviews
	verifier     *auth.Verifier
	remote       orchestrator.RemoteVoice
	timing       orchestrator.Timing
	origins      []string
	helloTimeout time.Duration
	upgrader     websocket.Upgrader

	base    context.Context // cancelled by Shutdown to end live sessions
	stopAll context.CancelFunc
	pending sync.WaitGroup // sessions whose clip uploads may still run
}

// Option configures a Server.
type Option func(*Server)

// WithRemoteVoice enables server-side synthesis for languages the device cannot speak.
func WithRemoteVoice(rv orchestrator.RemoteVoice) Option {
	return func(s *Server) { s.remote = rv }
}

// WithAllowedOrigins restricts browser origins. Empty allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithTiming overrides the speak and countdown timing.
func WithTiming(t orchestrator.Timing) Option {
	return func(s *Server) { s.timing = t }
}

// WithHelloTimeout bounds the wait for the browser's first frame.
func WithHelloTimeout(d time.Duration) Option {
	return func(s *Server) { s.helloTimeout = d }
}

func NewServer(svc Interviews, verifier *auth.Verifier, opts ...Option) *Server {
	s := &Server{svc: svc, verifier: verifier, helloTimeout: defaultHelloTimeout}
	for _, o := range opts {
		o(s)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.base, s.stopAll = context.WithCancel(context.Background())
	return s
}

// Shutdown ends live sessions and waits for their detached clip uploads.
// Hijacked connections are not tracked by http.Server.Shutdown, so callers
// run this after it.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopAll()
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler serves GET /ws/interview/{mockId}.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /ws/interview/{mockId}", s.verifier.Middleware(http.HandlerFunc(s.serveInterview)))
	return mux
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.origins) == 0 {
		return true
	}
	return slices.Contains(s.origins, r.Header.Get("Origin"))
}

func (s *Server) serveInterview(w http.ResponseWriter, r *http.Request) {
	mockID := r.PathValue("mockId")
	iv, err := s.svc.GetInterview(r.Context(), mockID)
	switch {
	case errors.Is(err, interview.ErrNotFound):
		http.Error(w, "interview not found", http.StatusNotFound)
		return
	case errors.Is(err, auth.ErrUnauthenticated):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	case err != nil:
		slog.Error("bridge: load interview", slog.String("mock_id", mockID), slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("bridge: upgrade failed", slog.Any("error", err))
		return
	}
	engine.IncrBridgeSessions()
	slog.Info("bridge: session started", slog.String("mock_id", mockID))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.base, cancel)
	defer stop()
	start := time.Now()
	err = s.session(ctx, cancel, conn, iv)
	switch {
	case err == nil:
		slog.Info("bridge: interview finished", slog.String("mock_id", mockID), slog.Duration("elapsed", time.Since(start)))
	case errors.Is(err, context.Canceled), errors.Is(err, ErrClosed):
		slog.Info("bridge: browser left", slog.String("mock_id", mockID), slog.Duration("elapsed", time.Since(start)))
	default:
		slog.Warn("bridge: session failed", slog.String("mock_id", mockID), slog.Any("error", err))
	}
}

func (s *Server) session(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, iv *interview.Interview) error {
	p := newPeer(conn)
	defer p.close()
	go func() {
		if err := p.readLoop(); err != nil {
			slog.Debug("bridge: read loop ended", slog.Any("error", err))
		}
		cancel()
	}()
	go p.pingLoop()

	hello, err := p.awaitHello(ctx, s.helloTimeout)
	if err != nil {
		_ = p.sendError(err.Error())
		p.finish(websocket.ClosePolicyViolation, "hello expected")
		return err
	}
	p.caps = hello.Capabilities

	lang := hello.Language
	if lang == "" {
		lang = iv.Language
	}
	session := orchestrator.NewSession(lang, orchestrator.ParseGender(hello.Gender))
	session.SetVoices(hello.Voices)

	var rec *orchestrator.Recorder
	if p.caps.Recording {
		rec = orchestrator.NewRecorder(ctx, media{p})
	}
	m := orchestrator.NewMachine(orchestrator.Config{
		MockID:     iv.MockID,
		Questions:  iv.Questions,
		Language:   session.Language,
		Difficulty: iv.Difficulty,
		FollowUps:  s.svc.FollowUpsEnabled(),
		CanSpeak:   p.caps.Synthesis,
		Timing:     s.timing,
	})
	runner := orchestrator.NewRunner(m, session, orchestrator.Ports{
		Synth:    voiceOut{p},
		Remote:   s.remote,
		Speech:   orchestrator.NewSpeechCapture(recognizer{p}),
		Recorder: rec,
		Backend:  s.svc,
		Notify:   p.notify,
	})
	s.pending.Add(1)
	defer func() {
		go func() {
			defer s.pending.Done()
			runner.Wait()
		}()
	}()
	p.setHandlers(func(ev orchestrator.Event) {
		if err := runner.Send(ctx, ev); err != nil {
			slog.Debug("bridge: input dropped", slog.Any("error", err))
		}
	}, session.SetVoices)

	if err := p.send(TypeReady, "", Ready{
		MockID:      iv.MockID,
		JobPosition: iv.JobPosition,
		Total:       len(iv.Questions),
		Language:    session.Language,
		FollowUps:   s.svc.FollowUpsEnabled(),
	}); err != nil {
		return err
	}

	if err := runner.Run(ctx); err != nil {
		return err
	}
	p.finish(websocket.CloseNormalClosure, "interview finished")
	return nil
}

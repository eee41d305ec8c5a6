package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/anatolykoptev/go_interview/internal/engine/interview"
	"github.com/anatolykoptev/go_interview/internal/orchestrator"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = pongWait * 9 / 10
	maxMessageBytes   = 64 << 20 // clips arrive inline
	recognitionBuffer = 64
)

// ErrClosed is returned by requests once the connection is gone.
var ErrClosed = errors.New("bridge: connection closed")

// RemoteError is a failure reported by the browser.
type RemoteError struct {
	Op      MessageType
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bridge: %s: %s", e.Op, e.Message)
}

// peer is the browser end of one connection. Requests are correlated with
// replies by ID; recognition results are routed to their session.
type peer struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu       sync.Mutex
	pending  map[string]chan Message
	sessions map[string]chan orchestrator.RecognitionEvent
	onUser   func(orchestrator.Event)
	onVoices func([]orchestrator.Voice)

	caps      Capabilities // set from hello before any port is used
	seq       atomic.Uint64
	hello     chan Hello
	closed    chan struct{}
	closeOnce sync.Once
}

func newPeer(conn *websocket.Conn) *peer {
	return &peer{
		conn:     conn,
		pending:  make(map[string]chan Message),
		sessions: make(map[string]chan orchestrator.RecognitionEvent),
		hello:    make(chan Hello, 1),
		closed:   make(chan struct{}),
	}
}

func (p *peer) nextID() string { return strconv.FormatUint(p.seq.Add(1), 10) }

func (p *peer) send(typ MessageType, id string, data any) error {
	msg := Message{Type: typ, ID: id}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("bridge: marshal %s: %w", typ, err)
		}
		msg.Data = raw
	}
	return p.write(msg)
}

func (p *peer) sendError(text string) error {
	return p.write(Message{Type: TypeError, Error: text})
}

func (p *peer) write(msg Message) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := p.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("bridge: write %s: %w", msg.Type, err)
	}
	return nil
}

// call sends a request and waits for its reply, decoding reply data into out.
func (p *peer) call(ctx context.Context, typ MessageType, id string, data, out any) error {
	ch := make(chan Message, 1)
	p.mu.Lock()
	p.pending[id] = ch
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}()

	if err := p.send(typ, id, data); err != nil {
		return err
	}
	select {
	case reply := <-ch:
		if reply.Error != "" {
			return &RemoteError{Op: typ, Message: reply.Error}
		}
		if out != nil && len(reply.Data) > 0 {
			if err := json.Unmarshal(reply.Data, out); err != nil {
				return fmt.Errorf("bridge: decode %s reply: %w", typ, err)
			}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closed:
		return ErrClosed
	}
}

// readLoop dispatches incoming frames until the connection fails.
func (p *peer) readLoop() error {
	defer p.close()
	p.conn.SetReadLimit(maxMessageBytes)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			select {
			case <-p.closed:
				return nil
			default:
			}
			return fmt.Errorf("bridge: read: %w", err)
		}
		_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			slog.Debug("bridge: invalid frame", slog.Any("error", err))
			continue
		}
		p.handle(msg)
	}
}

func (p *peer) handle(msg Message) {
	switch msg.Type {
	case TypeReply:
		p.mu.Lock()
		ch := p.pending[msg.ID]
		p.mu.Unlock()
		if ch != nil {
			select {
			case ch <- msg:
			default:
			}
		}
	case TypeRecognition:
		var d RecognitionData
		if err := json.Unmarshal(msg.Data, &d); err != nil {
			slog.Debug("bridge: invalid recognition frame", slog.Any("error", err))
			return
		}
		p.deliver(msg.ID, orchestrator.RecognitionEvent{Transcript: d.Transcript, End: d.End, Reason: d.Reason})
	case TypeHello:
		var h Hello
		if err := json.Unmarshal(msg.Data, &h); err != nil {
			slog.Debug("bridge: invalid hello", slog.Any("error", err))
			return
		}
		select {
		case p.hello <- h:
		default:
		}
	case TypeVoices:
		var voices []orchestrator.Voice
		if err := json.Unmarshal(msg.Data, &voices); err != nil {
			return
		}
		p.mu.Lock()
		fn := p.onVoices
		p.mu.Unlock()
		if fn != nil {
			fn(voices)
		}
	case TypeStart:
		p.user(orchestrator.Start{})
	case TypeToggle:
		p.user(orchestrator.Toggle{})
	case TypeSubmit:
		var d SubmitData
		if len(msg.Data) > 0 {
			_ = json.Unmarshal(msg.Data, &d)
		}
		p.user(orchestrator.Submit{Text: d.Text})
	case TypeSkip:
		p.user(orchestrator.Skip{})
	default:
		slog.Debug("bridge: unknown frame", slog.String("type", string(msg.Type)))
	}
}

func (p *peer) deliver(session string, ev orchestrator.RecognitionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.sessions[session]
	if !ok {
		return
	}
	select {
	case ch <- ev:
	default:
		slog.Warn("bridge: recognition backlog full, result dropped", slog.String("session", session))
	}
	if ev.End {
		delete(p.sessions, session)
		close(ch)
	}
}

func (p *peer) user(ev orchestrator.Event) {
	p.mu.Lock()
	fn := p.onUser
	p.mu.Unlock()
	if fn == nil {
		slog.Debug("bridge: input before ready", slog.String("event", fmt.Sprintf("%T", ev)))
		return
	}
	fn(ev)
}

func (p *peer) setHandlers(onUser func(orchestrator.Event), onVoices func([]orchestrator.Voice)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onUser, p.onVoices = onUser, onVoices
}

func (p *peer) awaitHello(ctx context.Context, timeout time.Duration) (Hello, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case h := <-p.hello:
		return h, nil
	case <-t.C:
		return Hello{}, errors.New("bridge: no hello from browser")
	case <-ctx.Done():
		return Hello{}, ctx.Err()
	case <-p.closed:
		return Hello{}, ErrClosed
	}
}

func (p *peer) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-p.closed:
			return
		}
	}
}

func (p *peer) notify(s orchestrator.Snapshot) {
	if err := p.send(TypeState, "", s); err != nil {
		slog.Debug("bridge: state not delivered", slog.Any("error", err))
	}
}

// finish sends a close frame with the given code and reason.
func (p *peer) finish(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func (p *peer) close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		_ = p.conn.Close()
	})
}

// voiceOut plays questions through the browser's speech synthesis.
type voiceOut struct{ p *peer }

func (v voiceOut) Available() bool { return v.p.caps.Synthesis }

func (v voiceOut) Speak(ctx context.Context, u orchestrator.Utterance) error {
	id := v.p.nextID()
	err := v.p.call(ctx, TypeSpeak, id, SpeakData{
		Text:      u.Text,
		Lang:      u.Lang,
		VoiceURI:  u.VoiceURI,
		Audio:     u.Audio,
		AudioType: u.AudioType,
	}, nil)
	if ctx.Err() != nil {
		_ = v.p.send(TypeSpeakCancel, id, nil)
	}
	return err
}

// recognizer opens speech recognition sessions in the browser.
type recognizer struct{ p *peer }

func (r recognizer) Available() bool { return r.p.caps.Recognition }

func (r recognizer) Open(ctx context.Context, lang string) (orchestrator.RecognitionSession, error) {
	id := r.p.nextID()
	ch := make(chan orchestrator.RecognitionEvent, recognitionBuffer)
	r.p.mu.Lock()
	r.p.sessions[id] = ch
	r.p.mu.Unlock()

	s := &recognition{p: r.p, id: id, events: ch}
	if err := r.p.call(ctx, TypeRecognitionOpen, id, OpenData{Lang: lang}, nil); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

type recognition struct {
	p      *peer
	id     string
	events chan orchestrator.RecognitionEvent
}

func (s *recognition) Events() <-chan orchestrator.RecognitionEvent { return s.events }

func (s *recognition) Close() {
	s.p.mu.Lock()
	if ch, ok := s.p.sessions[s.id]; ok {
		delete(s.p.sessions, s.id)
		close(ch)
	}
	s.p.mu.Unlock()
	_ = s.p.send(TypeRecognitionClose, s.id, nil)
}

// media drives the browser's camera, microphone and MediaRecorder.
type media struct{ p *peer }

func (m media) AcquireAudio(ctx context.Context) (orchestrator.Track, error) {
	var td TrackData
	if err := m.p.call(ctx, TypeAcquireAudio, m.p.nextID(), nil, &td); err != nil {
		return nil, err
	}
	if td.Track == "" {
		return nil, errors.New("bridge: browser returned no audio track")
	}
	return &track{p: m.p, id: td.Track, kind: "audio"}, nil
}

func (m media) Video(ctx context.Context) (orchestrator.Track, bool) {
	var td TrackData
	if err := m.p.call(ctx, TypeVideo, m.p.nextID(), nil, &td); err != nil || td.Track == "" {
		return nil, false
	}
	return &track{p: m.p, id: td.Track, kind: "video"}, true
}

func (m media) Supports(mimeType string) bool {
	return slices.Contains(m.p.caps.MimeTypes, mimeType)
}

func (m media) Record(ctx context.Context, tracks []orchestrator.Track, mimeType string) (orchestrator.Encoder, error) {
	ids := make([]string, 0, len(tracks))
	for _, t := range tracks {
		if rt, ok := t.(*track); ok {
			ids = append(ids, rt.id)
		}
	}
	id := m.p.nextID()
	if err := m.p.call(ctx, TypeRecord, id, RecordData{Tracks: ids, MimeType: mimeType}, nil); err != nil {
		return nil, err
	}
	return &encoder{p: m.p, id: id}, nil
}

type track struct {
	p    *peer
	id   string
	kind string
}

func (t *track) Kind() string { return t.kind }
func (t *track) Stop()        { _ = t.p.send(TypeTrackStop, t.id, nil) }

type encoder struct {
	p  *peer
	id string
}

func (e *encoder) Finish(ctx context.Context) (interview.Clip, error) {
	var cd ClipData
	if err := e.p.call(ctx, TypeFinish, e.id, nil, &cd); err != nil {
		return interview.Clip{}, err
	}
	return interview.Clip{Data: cd.Data, ContentType: cd.ContentType}, nil
}

func (e *encoder) Abort() { _ = e.p.send(TypeAbort, e.id, nil) }

// Package tts provides incremental text-to-speech over Cartesia's WebSocket
// API. Text goes in as it is generated; PCM audio streams back.
package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

const (
	cartesiaWSURL   = "wss://api.cartesia.ai/tts/websocket"
	cartesiaVersion = "2025-04-16"
	defaultModelID  = "sonic-3"
	defaultVoiceID  = "a0e99841-438c-4a64-b679-ae501e7d6091"
)

// Client opens streaming synthesis sessions against Cartesia.
type Client struct {
	apiKey string
	wsURL  string // overridable in tests
}

// NewClient creates a Cartesia TTS client.
func NewClient(apiKey string) *Client {
	return &Client{apiKey: apiKey, wsURL: cartesiaWSURL}
}

// Options configures a synthesis stream.
type Options struct {
	Voice      string // Cartesia voice ID
	Language   string // ISO code
	SampleRate int    // Hz, default 24000
	// MaxBufferDelayMs bounds how long Cartesia waits for more text before
	// generating. 0 means the service default (500ms).
	MaxBufferDelayMs int
}

// Stream is a live synthesis session over one voice context. SendText pushes
// text chunks; raw pcm_s16le audio arrives on Audio. The audio channel is
// closed once the final chunk has been fully rendered.
type Stream struct {
	audio  chan []byte
	done   chan struct{}
	closed atomic.Bool

	errMu sync.Mutex
	err   error

	conn    *websocket.Conn
	writeMu sync.Mutex
	base    synthesisRequest
	cancel  context.CancelFunc
}

type voiceSpec struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type outputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

type synthesisRequest struct {
	ModelID          string       `json:"model_id"`
	Transcript       string       `json:"transcript"`
	Voice            voiceSpec    `json:"voice"`
	OutputFormat     outputFormat `json:"output_format"`
	ContextID        string       `json:"context_id"`
	Continue         bool         `json:"continue"`
	MaxBufferDelayMs int          `json:"max_buffer_delay_ms,omitempty"`
	Language         *string      `json:"language,omitempty"`
}

type synthesisResponse struct {
	Type  string `json:"type"` // "chunk", "flush_done", "done", "error"
	Data  string `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

var contextCounter atomic.Uint64

func nextContextID() string {
	return fmt.Sprintf("ctx_%d", contextCounter.Add(1))
}

// OpenStream dials the synthesis WebSocket and starts the audio read loop.
func (c *Client) OpenStream(ctx context.Context, opts Options) (*Stream, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("parse websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("api_key", c.apiKey)
	q.Set("cartesia_version", cartesiaVersion)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket connect: %w", err)
	}

	voice := opts.Voice
	if voice == "" {
		voice = defaultVoiceID
	}
	sampleRate := opts.SampleRate
	if sampleRate == 0 {
		sampleRate = 24000
	}

	base := synthesisRequest{
		ModelID: defaultModelID,
		Voice:   voiceSpec{Mode: "id", ID: voice},
		OutputFormat: outputFormat{
			Container:  "raw",
			Encoding:   "pcm_s16le",
			SampleRate: sampleRate,
		},
		ContextID:        nextContextID(),
		MaxBufferDelayMs: opts.MaxBufferDelayMs,
	}
	if opts.Language != "" {
		lang := opts.Language
		base.Language = &lang
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		audio:  make(chan []byte, 100),
		done:   make(chan struct{}),
		conn:   conn,
		base:   base,
		cancel: cancel,
	}
	go s.readLoop(ctx)
	return s, nil
}

func (s *Stream) readLoop(ctx context.Context) {
	defer close(s.audio)
	defer s.conn.Close()

	for {
		select {
		case <-ctx.Done():
			s.setError(ctx.Err())
			return
		case <-s.done:
			return
		default:
		}

		var msg synthesisResponse
		if err := s.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && !s.closed.Load() {
				s.setError(err)
			}
			return
		}

		switch msg.Type {
		case "chunk":
			pcm, err := base64.StdEncoding.DecodeString(msg.Data)
			if err != nil {
				s.setError(fmt.Errorf("decode audio: %w", err))
				return
			}
			select {
			case s.audio <- pcm:
			case <-s.done:
				return
			}
		case "flush_done":
			continue
		case "done":
			return
		case "error":
			s.setError(fmt.Errorf("cartesia error: %s", msg.Error))
			return
		}
	}
}

// SendText pushes one text chunk into the voice context. The context stays
// open for continuation until a chunk is sent with final=true; after that
// Cartesia renders everything buffered and ends the stream.
func (s *Stream) SendText(text string, final bool) error {
	if s.closed.Load() {
		return ErrStreamClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	req := s.base
	req.Transcript = text
	req.Continue = !final
	return s.conn.WriteJSON(req)
}

// Flush signals that no more text is coming.
func (s *Stream) Flush() error {
	return s.SendText("", true)
}

// Audio returns the PCM chunk channel. Closed when synthesis completes.
func (s *Stream) Audio() <-chan []byte {
	return s.audio
}

// Err returns the first error the stream hit, if any.
func (s *Stream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Stream) setError(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}

// Close tears the session down, discarding any unrendered audio. Safe to call
// more than once.
func (s *Stream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.done)
	s.cancel()
	return s.conn.Close()
}

// ErrStreamClosed is returned when sending on a closed stream.
var ErrStreamClosed = fmt.Errorf("synthesis stream closed")

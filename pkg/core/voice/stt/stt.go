// Package stt provides streaming speech-to-text over Cartesia's WebSocket API.
package stt

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	cartesiaWSURL   = "wss://api.cartesia.ai/stt/websocket"
	cartesiaVersion = "2025-04-16"
	defaultModel    = "ink-whisper"
)

// Client opens streaming transcription sessions against Cartesia.
type Client struct {
	apiKey string
	wsURL  string // overridable in tests
}

// NewClient creates a Cartesia STT client.
func NewClient(apiKey string) *Client {
	return &Client{apiKey: apiKey, wsURL: cartesiaWSURL}
}

// Options configures a transcription stream.
type Options struct {
	Model      string // default "ink-whisper"
	Language   string // ISO code, default "en"
	SampleRate int    // Hz, default 16000
}

// Result is one streaming transcript update. Interim results for a segment
// are superseded by the final result carrying IsFinal.
type Result struct {
	Text    string
	IsFinal bool
}

// Stream is a live transcription session. Audio goes in via SendAudio as
// 16-bit little-endian mono PCM; transcript updates come out of Results.
type Stream struct {
	conn    *websocket.Conn
	results chan Result
	done    chan struct{}
	closed  atomic.Bool
	writeMu sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
}

// OpenStream dials the transcription WebSocket and starts the read loop.
func (c *Client) OpenStream(ctx context.Context, opts Options) (*Stream, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("parse websocket URL: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	language := opts.Language
	if language == "" {
		language = "en"
	}
	sampleRate := opts.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}

	q := u.Query()
	q.Set("model", model)
	q.Set("language", language)
	q.Set("encoding", "pcm_s16le")
	q.Set("sample_rate", fmt.Sprintf("%d", sampleRate))
	// Endpointing happens on our side; a low min_volume keeps Cartesia
	// streaming interim transcripts instead of gating on its own silence.
	q.Set("min_volume", "0.01")
	q.Set("api_key", c.apiKey)
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("X-API-Key", c.apiKey)
	headers.Set("Cartesia-Version", cartesiaVersion)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if len(body) > 0 {
				return nil, fmt.Errorf("websocket connect (status %d): %s", resp.StatusCode, string(body))
			}
			return nil, fmt.Errorf("websocket connect: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket connect: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		conn:    conn,
		results: make(chan Result, 100),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	go s.readLoop()
	return s, nil
}

type sttMessage struct {
	Type      string `json:"type"` // "transcript", "flush_done", "done", "error"
	Text      string `json:"text"`
	IsFinal   bool   `json:"is_final"`
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
}

func (s *Stream) readLoop() {
	defer func() {
		close(s.results)
		close(s.done)
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		var msg sttMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "transcript":
			select {
			case s.results <- Result{Text: msg.Text, IsFinal: msg.IsFinal}:
			case <-s.ctx.Done():
				return
			}
		case "flush_done":
			continue
		case "done", "error":
			return
		}
	}
}

// SendAudio writes one PCM chunk to the session.
func (s *Stream) SendAudio(data []byte) error {
	if s.closed.Load() {
		return fmt.Errorf("stream closed")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Finalize flushes buffered audio so pending transcripts are emitted as
// final. The session stays open for more audio.
func (s *Stream) Finalize() error {
	if s.closed.Load() {
		return fmt.Errorf("stream closed")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, []byte("finalize"))
}

// Results returns the transcript channel. It is closed when the session ends.
func (s *Stream) Results() <-chan Result {
	return s.results
}

// Done is closed when the session ends.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Close terminates the session. Safe to call more than once.
func (s *Stream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.cancel()

	s.writeMu.Lock()
	s.conn.WriteMessage(websocket.TextMessage, []byte("done"))
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()

	return s.conn.Close()
}

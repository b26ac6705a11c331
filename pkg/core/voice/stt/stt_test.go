package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

// fakeServer speaks just enough of the transcription protocol for the stream
// to exercise its read and write paths.
func fakeServer(t *testing.T, handle func(conn *websocket.Conn)) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(srv.Close)

	c := NewClient("test-key")
	c.wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return c
}

func TestStreamReceivesTranscripts(t *testing.T) {
	c := fakeServer(t, func(conn *websocket.Conn) {
		conn.WriteJSON(sttMessage{Type: "transcript", Text: "hello", IsFinal: false})
		conn.WriteJSON(sttMessage{Type: "transcript", Text: "hello there", IsFinal: true})
		conn.WriteJSON(sttMessage{Type: "done"})
	})

	s, err := c.OpenStream(context.Background(), Options{})
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer s.Close()

	var got []Result
	for r := range s.Results() {
		got = append(got, r)
	}
	if len(got) != 2 {
		t.Fatalf("results = %d, want 2", len(got))
	}
	if got[0].IsFinal || !got[1].IsFinal {
		t.Errorf("finality flags wrong: %+v", got)
	}
	if got[1].Text != "hello there" {
		t.Errorf("final text = %q", got[1].Text)
	}

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not finish")
	}
}

func TestStreamSendsAudioAndFinalize(t *testing.T) {
	type received struct {
		kind int
		data []byte
	}
	recv := make(chan received, 10)
	c := fakeServer(t, func(conn *websocket.Conn) {
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			recv <- received{kind, data}
		}
	})

	s, err := c.OpenStream(context.Background(), Options{SampleRate: 16000})
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer s.Close()

	if err := s.SendAudio([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("send audio: %v", err)
	}
	if err := s.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	first := <-recv
	if first.kind != websocket.BinaryMessage || len(first.data) != 4 {
		t.Errorf("first message kind=%d len=%d", first.kind, len(first.data))
	}
	second := <-recv
	if second.kind != websocket.TextMessage || string(second.data) != "finalize" {
		t.Errorf("second message = %q", second.data)
	}
}

func TestStreamCloseIsIdempotent(t *testing.T) {
	c := fakeServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	s, err := c.OpenStream(context.Background(), Options{})
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := s.SendAudio([]byte{1}); err == nil {
		t.Error("SendAudio after close must fail")
	}
}

func TestOpenStreamQueryDefaults(t *testing.T) {
	params := make(chan map[string]string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		got := map[string]string{}
		for k := range q {
			got[k] = q.Get(k)
		}
		params <- got
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	c := NewClient("test-key")
	c.wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	s, err := c.OpenStream(context.Background(), Options{})
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer s.Close()

	q := <-params
	if q["model"] != "ink-whisper" || q["language"] != "en" {
		t.Errorf("defaults not applied: %v", q)
	}
	if q["encoding"] != "pcm_s16le" || q["sample_rate"] != "16000" {
		t.Errorf("audio params wrong: %v", q)
	}
}

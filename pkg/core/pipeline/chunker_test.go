package pipeline

import (
	"strings"
	"testing"
)

func TestTextChunker_Punctuation(t *testing.T) {
	c := NewTextChunker()

	tests := []struct {
		delta    string
		expected string
	}{
		{"Hello", ""},
		{" world", ""},
		{"!", "Hello world!"},
	}

	for _, tt := range tests {
		result := c.Add(tt.delta)
		if result != tt.expected {
			t.Errorf("Add(%q) = %q, want %q", tt.delta, result, tt.expected)
		}
	}
}

func TestTextChunker_WordCount(t *testing.T) {
	c := NewTextChunker()

	deltas := []string{
		"The",     // 1 word
		" bird",   // 2 words
		" was",    // 3 words
		" chirp",  // 4 words (incomplete)
		"ing",     // still 4 words (completed "chirping")
		" loudly", // 5 words
		" today",  // 6 words - should trigger send of previous 5
	}

	var results []string
	for _, d := range deltas {
		if r := c.Add(d); r != "" {
			results = append(results, r)
		}
	}

	if len(results) != 1 {
		t.Fatalf("expected 1 send, got %d: %v", len(results), results)
	}
	if results[0] != "The bird was chirping loudly" {
		t.Errorf("expected 'The bird was chirping loudly', got %q", results[0])
	}

	remainder := c.Flush()
	if remainder != "today" {
		t.Errorf("expected 'today' in buffer, got %q", remainder)
	}
}

func TestTextChunker_MixedPunctuationAndWords(t *testing.T) {
	c := NewTextChunker()

	deltas := []string{
		"Hey",
		" there",
		"!",
		" How",
		"'s",
		" it",
		" going",
		"?",
	}

	var results []string
	for _, d := range deltas {
		if r := c.Add(d); r != "" {
			results = append(results, r)
		}
	}

	expected := []string{"Hey there!", "How's it going?"}
	if len(results) != len(expected) {
		t.Fatalf("expected %d sends, got %d: %v", len(expected), len(results), results)
	}
	for i, e := range expected {
		if results[i] != e {
			t.Errorf("result[%d] = %q, want %q", i, results[i], e)
		}
	}
}

func TestTextChunker_Reset(t *testing.T) {
	c := NewTextChunker()
	c.Add("Hello")
	c.Reset()
	if got := c.Flush(); got != "" {
		t.Errorf("flush after reset = %q, want empty", got)
	}
}

func TestChunkReply(t *testing.T) {
	chunks := ChunkReply("Hey there! How's it going? I noticed you drifted off.")
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %v", chunks)
	}
	joined := strings.Join(chunks, " ")
	for _, word := range []string{"Hey", "there!", "drifted"} {
		if !strings.Contains(joined, word) {
			t.Errorf("chunks lost %q: %v", word, chunks)
		}
	}
	if chunks[0] != "Hey there!" {
		t.Errorf("first chunk = %q", chunks[0])
	}
}

func TestChunkReply_Empty(t *testing.T) {
	if chunks := ChunkReply(""); chunks != nil {
		t.Errorf("expected no chunks, got %v", chunks)
	}
}

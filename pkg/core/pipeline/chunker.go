package pipeline

import (
	"strings"
	"sync"
)

// TextChunker accumulates reply text and emits chunks sized for low-latency
// speech synthesis. It emits on:
// 1. Punctuation: . , ! ?
// 2. Word count threshold (5 words) at a confirmed word boundary
type TextChunker struct {
	mu          sync.Mutex
	text        strings.Builder
	minWords    int
	punctuation string
}

// NewTextChunker creates a chunker with default settings.
func NewTextChunker() *TextChunker {
	return &TextChunker{
		minWords:    5,
		punctuation: ",.!?",
	}
}

// Add appends a text delta and returns a chunk ready for synthesis, or empty
// if more text should be buffered.
func (c *TextChunker) Add(delta string) string {
	if delta == "" {
		return ""
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// A delta starting with whitespace confirms the previous word ended.
	startsWithSpace := delta[0] == ' ' || delta[0] == '\n'

	prevContent := c.text.String()
	prevWordCount := len(strings.Fields(prevContent))

	c.text.WriteString(delta)
	content := c.text.String()

	// Punctuation sends immediately, up to and including the last mark.
	if strings.ContainsAny(delta, c.punctuation) {
		lastPunct := strings.LastIndexAny(content, c.punctuation)
		if lastPunct >= 0 {
			toSend := strings.TrimSpace(content[:lastPunct+1])
			remainder := strings.TrimSpace(content[lastPunct+1:])
			c.text.Reset()
			if remainder != "" {
				c.text.WriteString(remainder)
			}
			return toSend
		}
	}

	if prevWordCount >= c.minWords && startsWithSpace {
		toSend := strings.TrimSpace(prevContent)
		c.text.Reset()
		c.text.WriteString(strings.TrimLeft(delta, " \n"))
		return toSend
	}

	return ""
}

// Flush returns any remaining buffered text and resets the chunker. Call when
// the reply is complete.
func (c *TextChunker) Flush() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := strings.TrimSpace(c.text.String())
	c.text.Reset()
	return result
}

// Reset discards buffered text. Call on interrupt.
func (c *TextChunker) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text.Reset()
}

// ChunkReply splits a complete reply into synthesis-sized chunks.
func ChunkReply(reply string) []string {
	c := NewTextChunker()
	var chunks []string
	for _, word := range strings.Fields(reply) {
		if out := c.Add(" " + word); out != "" {
			chunks = append(chunks, out)
		}
	}
	if out := c.Flush(); out != "" {
		chunks = append(chunks, out)
	}
	return chunks
}

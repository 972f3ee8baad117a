// Package tokencount estimates prompt sizes before they are sent to the model.
//
// Gemini does not publish a local tokenizer, so counts use tiktoken-go's
// cl100k_base encoding as an approximation. It is close enough to keep a
// prompt under a budget with some headroom.
package tokencount

import (
	"log/slog"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is used for every model.
const DefaultEncoding = "cl100k_base"

// Counter provides thread-safe token counting.
type Counter struct {
	encoding string
	once     sync.Once
	enc      *tiktoken.Tiktoken
	err      error
}

// NewCounter creates a counter for the given tiktoken encoding name.
func NewCounter(encoding string) *Counter {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &Counter{encoding: encoding}
}

// DefaultCounter is a global token counter instance.
var DefaultCounter = NewCounter(DefaultEncoding)

func (c *Counter) encoder() (*tiktoken.Tiktoken, error) {
	c.once.Do(func() {
		c.enc, c.err = tiktoken.GetEncoding(c.encoding)
		if c.err != nil {
			slog.Warn("tiktoken encoding unavailable, using length estimate",
				slog.String("encoding", c.encoding), slog.Any("error", c.err))
		}
	})
	return c.enc, c.err
}

// Count returns the token count of text. When the encoding cannot be loaded
// it falls back to a rough estimate of one token per four bytes.
func (c *Counter) Count(text string) int {
	enc, err := c.encoder()
	if err != nil {
		return estimate(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// FitToBudget returns how many leading items fit in budget tokens once fixed
// (the prompt scaffolding) is accounted for. Items are never split.
func (c *Counter) FitToBudget(fixed string, items []string, budget int) int {
	used := c.Count(fixed)
	n := 0
	for _, it := range items {
		cost := c.Count(it)
		if used+cost > budget {
			break
		}
		used += cost
		n++
	}
	return n
}

func estimate(text string) int {
	return (len(text) + 3) / 4
}

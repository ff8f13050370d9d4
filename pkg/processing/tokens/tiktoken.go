package tokens

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

// encodingPrefixes maps model name prefixes to their BPE encoding. Longer
// prefixes are listed first so "gpt-4o" wins over "gpt-4".
var encodingPrefixes = []struct {
	prefix   string
	encoding string
}{
	{"gpt-4o", "o200k_base"},
	{"o1", "o200k_base"},
	{"o3", "o200k_base"},
	{"gpt-4", "cl100k_base"},
	{"gpt-3.5", "cl100k_base"},
	{"text-embedding-3", "cl100k_base"},
}

// TiktokenCounter counts units with the model's BPE encoding. Encodings are
// loaded lazily on first use and cached. tiktoken-go may download the rank
// files once; if an encoding cannot be loaded the fallback counter is used.
type TiktokenCounter struct {
	fallback Counter

	mu        sync.Mutex
	encodings map[string]*tiktoken.Tiktoken
	failed    map[string]bool
}

// NewTiktokenCounter creates a counter that falls back to fallback when an
// encoding is unavailable.
func NewTiktokenCounter(fallback Counter) *TiktokenCounter {
	return &TiktokenCounter{
		fallback:  fallback,
		encodings: make(map[string]*tiktoken.Tiktoken),
		failed:    make(map[string]bool),
	}
}

// Count encodes text and returns the number of BPE tokens.
func (c *TiktokenCounter) Count(text, model string) int {
	if text == "" {
		return 0
	}
	enc := c.encoding(encodingFor(model))
	if enc == nil {
		return c.fallback.Count(text, model)
	}
	return len(enc.Encode(text, nil, nil))
}

func (c *TiktokenCounter) encoding(name string) *tiktoken.Tiktoken {
	c.mu.Lock()
	defer c.mu.Unlock()

	if enc, ok := c.encodings[name]; ok {
		return enc
	}
	if c.failed[name] {
		return nil
	}

	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		slog.Default().Warn("tiktoken encoding unavailable, using character estimate",
			"component", "tokens", "encoding", name, "error", err)
		c.failed[name] = true
		return nil
	}
	c.encodings[name] = enc
	return enc
}

func encodingFor(model string) string {
	for _, e := range encodingPrefixes {
		if strings.HasPrefix(model, e.prefix) {
			return e.encoding
		}
	}
	return defaultEncoding
}

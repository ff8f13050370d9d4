package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"mercator-hq/tollgate/pkg/providers"
)

type canonicalMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// canonicalRequest fixes the field order of the fingerprinted document.
type canonicalRequest struct {
	Model       string             `json:"model"`
	Messages    []canonicalMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
	MaxTokens   int                `json:"max_tokens"`
}

// Fingerprint returns the hex SHA-256 of the request's model, messages,
// temperature and max tokens. Roles are lower-cased and trimmed; content is
// used verbatim; every other field is ignored.
//
// Tool schemas are not part of the fingerprint. Two requests that differ
// only in their tools share one cached response, so callers that depend on
// tool calls should disable caching or vary another fingerprinted field.
func Fingerprint(req *providers.CompletionRequest) string {
	if req == nil {
		return ""
	}

	c := canonicalRequest{
		Model:       req.Model,
		Messages:    make([]canonicalMessage, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	for i, m := range req.Messages {
		c.Messages[i] = canonicalMessage{
			Role:    strings.ToLower(strings.TrimSpace(m.Role)),
			Content: m.Content,
		}
	}

	// Marshalling plain strings and numbers cannot fail.
	data, _ := json.Marshal(c)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

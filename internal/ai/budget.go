package ai

import (
	"github.com/pkoukk/tiktoken-go"
	"github.com/suPer8Hu/nextile-ai/internal/observability"
)

const (
	defaultEncoding = "cl100k_base"

	// per-message framing and reply priming, as counted for chat models
	tokensPerMessage = 4
	tokensPerReply   = 3
)

type TokenCounter interface {
	Count(text string) int
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c tiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// estimateCounter is used when the BPE ranks cannot be loaded: about four bytes per token.
type estimateCounter struct{}

func (estimateCounter) Count(text string) int {
	return (len(text) + 3) / 4
}

// NewTokenCounter loads a tiktoken encoding, falling back to an estimate.
func NewTokenCounter(encoding string) TokenCounter {
	if encoding == "" {
		encoding = defaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		observability.Logger().Warn("tiktoken unavailable, estimating tokens", "encoding", encoding, "err", err)
		return estimateCounter{}
	}
	return tiktokenCounter{enc: enc}
}

func CountTokens(messages []Message, counter TokenCounter) int {
	n := tokensPerReply
	for _, m := range messages {
		n += tokensPerMessage + counter.Count(m.Role) + counter.Count(m.Content)
	}
	return n
}

// LastN keeps the leading system messages and the n most recent others.
// n <= 0 keeps everything.
func LastN(messages []Message, n int) []Message {
	if n <= 0 {
		return messages
	}
	head, rest := splitSystem(messages)
	if len(rest) <= n {
		return messages
	}
	out := make([]Message, 0, len(head)+n)
	out = append(out, head...)
	return append(out, rest[len(rest)-n:]...)
}

// TrimToBudget drops the oldest non-system messages until the history fits
// budget tokens. The newest message is always kept. budget <= 0 disables trimming.
func TrimToBudget(messages []Message, budget int, counter TokenCounter) []Message {
	if budget <= 0 || counter == nil {
		return messages
	}
	head, rest := splitSystem(messages)
	for len(rest) > 1 {
		candidate := append(append(make([]Message, 0, len(head)+len(rest)), head...), rest...)
		if CountTokens(candidate, counter) <= budget {
			return candidate
		}
		rest = rest[1:]
	}
	return append(append(make([]Message, 0, len(head)+len(rest)), head...), rest...)
}

func splitSystem(messages []Message) (head, rest []Message) {
	i := 0
	for i < len(messages) && messages[i].Role == "system" {
		i++
	}
	return messages[:i], messages[i:]
}

package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	ErrUnknownProvider = errors.New("unknown ai provider")
	ErrEmptyResponse   = errors.New("empty response")
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamProvider streams a chat reply. Both channels are closed when the
// stream ends, errs first.
type StreamProvider interface {
	StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error)
}

// ImageProvider turns a prompt into one PNG-encoded image.
type ImageProvider interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// StatusError is a non-2xx answer from an upstream model endpoint.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Code, e.Body)
}

// checkStatus returns a *StatusError for non-2xx responses, keeping a short body excerpt.
func checkStatus(provider string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
	return &StatusError{Provider: provider, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// streamingClient drops the overall timeout; the request context bounds the stream.
func streamingClient(c *http.Client) *http.Client {
	if c == nil {
		return &http.Client{}
	}
	cp := *c
	cp.Timeout = 0
	return &cp
}

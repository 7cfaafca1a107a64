package ai

import (
	"context"
	"time"

	"github.com/suPer8Hu/nextile-ai/internal/chat"
	"github.com/suPer8Hu/nextile-ai/internal/observability"
	"github.com/suPer8Hu/nextile-ai/internal/persona"
)

// Gateway fronts one streaming chat provider and one image provider and
// satisfies chat.Gateway.
type Gateway struct {
	chat    StreamProvider
	image   ImageProvider
	persona *persona.Holder

	window  int
	budget  int
	counter TokenCounter
}

type GatewayOption func(*Gateway)

// WithWindow limits the history to the n most recent messages.
func WithWindow(n int) GatewayOption {
	return func(g *Gateway) { g.window = n }
}

// WithTokenBudget trims the oldest messages until the request fits.
func WithTokenBudget(budget int, counter TokenCounter) GatewayOption {
	return func(g *Gateway) {
		g.budget = budget
		g.counter = counter
	}
}

func NewGateway(chatProvider StreamProvider, imageProvider ImageProvider, p *persona.Holder, opts ...GatewayOption) *Gateway {
	g := &Gateway{chat: chatProvider, image: imageProvider, persona: p}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Prompt builds the provider request: the system instruction followed by the
// text messages of history. Image messages are not sent.
func (g *Gateway) Prompt(history []chat.Message) []Message {
	out := make([]Message, 0, len(history)+1)
	out = append(out, Message{Role: string(chat.RoleSystem), Content: g.persona.Get().SystemInstruction})
	for _, m := range history {
		if m.IsImage() {
			continue
		}
		out = append(out, Message{Role: string(m.Role), Content: m.Text})
	}
	out = LastN(out, g.window)
	return TrimToBudget(out, g.budget, g.counter)
}

func (g *Gateway) CompleteChat(ctx context.Context, history []chat.Message) (<-chan string, <-chan error) {
	msgs := g.Prompt(history)
	observability.LoggerFromContext(ctx).Debug("chat request", "messages", len(msgs), "history", len(history))
	return g.chat.StreamChat(ctx, msgs)
}

func (g *Gateway) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	start := time.Now()
	img, err := g.image.GenerateImage(ctx, prompt)
	observability.LoggerFromContext(ctx).Info("image request", "cost", time.Since(start).String(), "bytes", len(img), "ok", err == nil)
	return img, err
}

var _ chat.Gateway = (*Gateway)(nil)

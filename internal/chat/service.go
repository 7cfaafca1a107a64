package chat

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/suPer8Hu/nextile-ai/internal/observability"
	"github.com/suPer8Hu/nextile-ai/internal/persona"
)

var ErrEmptyInput = errors.New("empty input")

// Service is the conversation controller. It routes inputs to chat or image
// generation, keeps the session in step with the store and reports progress
// through an EmitFunc.
type Service struct {
	store    Store
	gateway  Gateway
	persona  *persona.Holder
	notifier Notifier

	rngMu sync.Mutex
	rng   *rand.Rand
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithRand fixes the greeting source, for tests.
func WithRand(r *rand.Rand) Option {
	return func(s *Service) { s.rng = r }
}

func NewService(store Store, gateway Gateway, p *persona.Holder, opts ...Option) *Service {
	s := &Service{
		store:   store,
		gateway: gateway,
		persona: p,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Persona() persona.Persona {
	return s.persona.Get()
}

// StartNew begins an unsaved conversation holding one greeting.
func (s *Service) StartNew() *Session {
	s.rngMu.Lock()
	greeting := s.persona.Get().Greeting(s.rng)
	s.rngMu.Unlock()
	return NewSession(greeting)
}

// Resume loads a stored conversation into a new session.
func (s *Service) Resume(ctx context.Context, id string) (*Session, error) {
	all, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	conv, ok := all[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	sess := &Session{}
	sess.Load(id, conv.Messages)
	return sess, nil
}

// Conversations lists the stored catalog, most recent first.
func (s *Service) Conversations(ctx context.Context) ([]Conversation, error) {
	all, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return all.Recent(), nil
}

// ClearHistory wipes the store and returns a fresh session.
func (s *Service) ClearHistory(ctx context.Context) (*Session, error) {
	if err := s.store.ClearAll(ctx); err != nil {
		return nil, err
	}
	observability.LoggerFromContext(ctx).Info("history cleared")
	return s.StartNew(), nil
}

// Send handles one user input. Generation failures end up as a notice in the
// result; the returned error is reserved for empty input and persistence.
func (s *Service) Send(ctx context.Context, sess *Session, text string, emit EmitFunc) (TurnResult, error) {
	if emit == nil {
		emit = func(Event) {}
	}
	if strings.TrimSpace(text) == "" {
		return TurnResult{}, ErrEmptyInput
	}

	route := ClassifyInput(text)
	userMsg := TextMessage(RoleUser, text)
	sess.Append(userMsg)
	emit(Event{Kind: EventUser, Message: &userMsg})

	// saved before generation so the input survives a failed reply
	if err := s.save(ctx, sess); err != nil {
		return TurnResult{Route: route}, err
	}

	p := s.persona.Get()
	if route.Kind == RouteDraw {
		return s.draw(ctx, sess, route, p, emit)
	}
	return s.complete(ctx, sess, route, p, emit)
}

func (s *Service) complete(ctx context.Context, sess *Session, route Route, p persona.Persona, emit EmitFunc) (TurnResult, error) {
	log := observability.LoggerFromContext(ctx).With("conversation_id", sess.ID, "route", route.Kind.String())

	chunks, errs := s.gateway.CompleteChat(ctx, sess.Snapshot())

	var b strings.Builder
	for c := range chunks {
		b.WriteString(c)
		emit(Event{Kind: EventChunk, Text: c})
	}
	if err := <-errs; err != nil {
		log.Warn("chat completion failed", "err", err, "partial_len", b.Len())
		emit(Event{Kind: EventNotice, Text: p.Notices.ChatFailed})
		return TurnResult{Route: route, Notice: p.Notices.ChatFailed}, nil
	}

	reply := TextMessage(RoleAssistant, b.String())
	return s.finish(ctx, sess, route, reply, emit)
}

func (s *Service) draw(ctx context.Context, sess *Session, route Route, p persona.Persona, emit EmitFunc) (TurnResult, error) {
	log := observability.LoggerFromContext(ctx).With("conversation_id", sess.ID, "route", route.Kind.String())

	emit(Event{Kind: EventDrawing, Text: p.DrawingNotice(route.Prompt)})

	fail := func(err error) (TurnResult, error) {
		log.Warn("image generation failed", "err", err)
		emit(Event{Kind: EventNotice, Text: p.Notices.ImageFailed})
		return TurnResult{Route: route, Notice: p.Notices.ImageFailed}, nil
	}

	if route.Prompt == "" {
		return fail(errors.New("empty draw prompt"))
	}
	img, err := s.gateway.GenerateImage(ctx, route.Prompt)
	if err != nil {
		return fail(err)
	}
	if len(img) == 0 {
		return fail(errors.New("empty image"))
	}
	return s.finish(ctx, sess, route, ImageMessage(RoleAssistant, img), emit)
}

func (s *Service) finish(ctx context.Context, sess *Session, route Route, reply Message, emit EmitFunc) (TurnResult, error) {
	sess.Append(reply)
	emit(Event{Kind: EventAssistant, Message: &reply})
	if err := s.save(ctx, sess); err != nil {
		return TurnResult{Route: route, Reply: &reply}, err
	}
	return TurnResult{Route: route, Reply: &reply}, nil
}

func (s *Service) save(ctx context.Context, sess *Session) error {
	// a disconnected client must not abort the write
	ctx = context.WithoutCancel(ctx)

	conv, err := s.store.Save(ctx, sess.ID, sess.Snapshot())
	if err != nil {
		observability.LoggerFromContext(ctx).Error("save conversation failed", "conversation_id", sess.ID, "err", err)
		return err
	}
	if s.notifier != nil {
		if err := s.notifier.ConversationSaved(ctx, conv); err != nil {
			observability.LoggerFromContext(ctx).Warn("notify conversation saved failed", "conversation_id", sess.ID, "err", err)
		}
	}
	return nil
}

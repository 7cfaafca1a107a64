// Package telegram serves the conversation controller to Telegram chats.
// Each chat id owns one session; replies stream in through throttled edits.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/sourcegraph/conc/pool"

	"github.com/suPer8Hu/nextile-ai/internal/chat"
	"github.com/suPer8Hu/nextile-ai/internal/common"
	"github.com/suPer8Hu/nextile-ai/internal/observability"
)

const (
	MessageBusy          = "Still working on your last message."
	MessageNoChats       = "No saved chats yet."
	MessageOpenUsage     = "Usage: /open <number from /chats>"
	MessageChatNotFound  = "That chat does not exist. Use /chats to list them."
	MessageHistoryError  = "Chat history is unavailable right now."
	MessageCleared       = "History cleared."
	MessageSaveError     = "Your message could not be saved. Try again later."
	MessageHelpFormat    = "%s\n\nCommands:\n/new start a new chat\n/chats list saved chats\n/open <n> continue a saved chat\n/clear delete all chats\n/draw <prompt> generate an image"
	CommandStart         = "start"
	CommandHelp          = "help"
	CommandNew           = "new"
	CommandChats         = "chats"
	CommandOpen          = "open"
	CommandClear         = "clear"
	defaultEditInterval  = 2500 * time.Millisecond
	defaultMaxConcurrent = 8
)

// Sender is the part of *api.BotAPI the bot uses.
type Sender interface {
	Send(c api.Chattable) (api.Message, error)
	Request(c api.Chattable) (*api.APIResponse, error)
}

type chatSession struct {
	mu   sync.Mutex
	sess *chat.Session
}

type Bot struct {
	api  Sender
	chat *chat.Service

	// EditInterval bounds how often a streaming reply is edited. Telegram
	// rate-limits edits well below one per second in practice.
	EditInterval time.Duration
	// MaxConcurrent bounds the number of chats served at once.
	MaxConcurrent int

	mu       sync.Mutex
	sessions map[int64]*chatSession
}

func New(sender Sender, svc *chat.Service) *Bot {
	return &Bot{
		api:           sender,
		chat:          svc,
		EditInterval:  defaultEditInterval,
		MaxConcurrent: defaultMaxConcurrent,
		sessions:      make(map[int64]*chatSession),
	}
}

// Commands is the command menu registered with Telegram.
func Commands() api.SetMyCommandsConfig {
	return api.NewSetMyCommands(
		api.BotCommand{Command: CommandHelp, Description: "Get help"},
		api.BotCommand{Command: CommandNew, Description: "Start a new chat"},
		api.BotCommand{Command: CommandChats, Description: "List saved chats"},
		api.BotCommand{Command: CommandOpen, Description: "Continue a saved chat"},
		api.BotCommand{Command: CommandClear, Description: "Delete all chats"},
	)
}

// Run serves updates until ctx ends or the channel is closed.
func (b *Bot) Run(ctx context.Context, updates api.UpdatesChannel) {
	workers := pool.New().WithMaxGoroutines(b.MaxConcurrent)
	defer workers.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if u.Message == nil || u.Message.Text == "" {
				continue
			}
			chatID, text := u.Message.Chat.ID, u.Message.Text
			workers.Go(func() {
				b.HandleText(ctx, chatID, text)
			})
		}
	}
}

func (b *Bot) session(chatID int64) *chatSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	cs, ok := b.sessions[chatID]
	if !ok {
		cs = &chatSession{sess: b.chat.StartNew()}
		b.sessions[chatID] = cs
	}
	return cs
}

// HandleText answers one incoming text message. Bot commands are handled
// here; everything else, /draw included, goes to the controller.
func (b *Bot) HandleText(ctx context.Context, chatID int64, text string) {
	if id, err := common.NewULID(); err == nil {
		ctx = observability.WithRequestID(ctx, id)
	}
	log := observability.LoggerFromContext(ctx).With("component", "telegram", "chat_id", chatID)

	cs := b.session(chatID)
	if !cs.mu.TryLock() {
		b.reply(ctx, chatID, MessageBusy)
		return
	}
	defer cs.mu.Unlock()

	if cmd, args, ok := parseCommand(text); ok {
		b.command(ctx, cs, chatID, cmd, args)
		return
	}

	out := newReplyStream(b.api, chatID, b.EditInterval)
	_, err := b.chat.Send(ctx, cs.sess, text, func(e chat.Event) {
		b.render(ctx, out, e)
	})
	if err != nil {
		log.Error("turn failed", "err", err)
		if !errors.Is(err, chat.ErrEmptyInput) {
			b.reply(ctx, chatID, MessageSaveError)
		}
	}
}

func (b *Bot) render(ctx context.Context, out *replyStream, e chat.Event) {
	switch e.Kind {
	case chat.EventUser:
		b.action(ctx, out.chatID, api.ChatTyping)
	case chat.EventDrawing:
		b.reply(ctx, out.chatID, e.Text)
		b.action(ctx, out.chatID, api.ChatUploadPhoto)
	case chat.EventChunk:
		out.Append(ctx, e.Text)
	case chat.EventAssistant:
		if e.Message.IsImage() {
			b.photo(ctx, out.chatID, e.Message.Image)
			return
		}
		out.Finish(ctx, e.Message.Text)
	case chat.EventNotice:
		if !out.Replace(ctx, e.Text) {
			b.reply(ctx, out.chatID, e.Text)
		}
	}
}

func (b *Bot) command(ctx context.Context, cs *chatSession, chatID int64, cmd, args string) {
	log := observability.LoggerFromContext(ctx)
	switch cmd {
	case CommandStart, CommandHelp:
		b.reply(ctx, chatID, fmt.Sprintf(MessageHelpFormat, greetingOf(cs.sess)))

	case CommandNew:
		cs.sess = b.chat.StartNew()
		b.reply(ctx, chatID, greetingOf(cs.sess))

	case CommandChats:
		convs, err := b.chat.Conversations(ctx)
		if err != nil {
			log.Error("list conversations", "err", err)
			b.reply(ctx, chatID, MessageHistoryError)
			return
		}
		b.reply(ctx, chatID, formatChats(convs, cs.sess.ID))

	case CommandOpen:
		n, err := strconv.Atoi(strings.TrimSpace(args))
		if err != nil || n < 1 {
			b.reply(ctx, chatID, MessageOpenUsage)
			return
		}
		convs, err := b.chat.Conversations(ctx)
		if err != nil {
			log.Error("list conversations", "err", err)
			b.reply(ctx, chatID, MessageHistoryError)
			return
		}
		if n > len(convs) {
			b.reply(ctx, chatID, MessageChatNotFound)
			return
		}
		sess, err := b.chat.Resume(ctx, convs[n-1].ID)
		if err != nil {
			log.Error("resume conversation", "err", err)
			b.reply(ctx, chatID, MessageChatNotFound)
			return
		}
		cs.sess = sess
		b.reply(ctx, chatID, fmt.Sprintf("Opened %q (%d messages).", convs[n-1].Title, len(sess.Messages)))
		if last, ok := lastMessage(sess); ok {
			b.replay(ctx, chatID, last)
		}

	case CommandClear:
		sess, err := b.chat.ClearHistory(ctx)
		if err != nil {
			log.Error("clear history", "err", err)
			b.reply(ctx, chatID, MessageHistoryError)
			return
		}
		cs.sess = sess
		b.reply(ctx, chatID, MessageCleared)
		b.reply(ctx, chatID, greetingOf(sess))
	}
}

func (b *Bot) replay(ctx context.Context, chatID int64, m chat.Message) {
	if m.IsImage() {
		b.photo(ctx, chatID, m.Image)
		return
	}
	b.reply(ctx, chatID, m.Text)
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	for _, part := range splitText(text, maxMessageRunes) {
		if _, err := b.api.Send(api.NewMessage(chatID, part)); err != nil {
			observability.LoggerFromContext(ctx).Warn("send message", "chat_id", chatID, "err", err)
		}
	}
}

func (b *Bot) photo(ctx context.Context, chatID int64, png []byte) {
	msg := api.NewPhoto(chatID, api.FileBytes{Name: "image.png", Bytes: png})
	if _, err := b.api.Send(msg); err != nil {
		observability.LoggerFromContext(ctx).Warn("send photo", "chat_id", chatID, "err", err)
	}
}

func (b *Bot) action(ctx context.Context, chatID int64, action string) {
	if _, err := b.api.Request(api.NewChatAction(chatID, action)); err != nil {
		observability.LoggerFromContext(ctx).Debug("send chat action", "chat_id", chatID, "err", err)
	}
}

// parseCommand recognises the bot's own commands, with or without a
// "@botname" suffix. Any other slash text is a normal input.
func parseCommand(text string) (cmd, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	head, _, _ = strings.Cut(head, "@")
	head = strings.ToLower(head)
	switch head {
	case CommandStart, CommandHelp, CommandNew, CommandChats, CommandOpen, CommandClear:
		return head, strings.TrimSpace(rest), true
	}
	return "", "", false
}

func formatChats(convs []chat.Conversation, activeID string) string {
	if len(convs) == 0 {
		return MessageNoChats
	}
	var sb strings.Builder
	sb.WriteString("Recent chats:\n")
	for i, c := range convs {
		marker := ""
		if c.ID == activeID {
			marker = " (current)"
		}
		fmt.Fprintf(&sb, "%d) %s · %s%s\n", i+1, c.Title, c.Date, marker)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func greetingOf(sess *chat.Session) string {
	for _, m := range sess.Messages {
		if m.Role == chat.RoleAssistant && !m.IsImage() {
			return m.Text
		}
	}
	return ""
}

func lastMessage(sess *chat.Session) (chat.Message, bool) {
	if len(sess.Messages) == 0 {
		return chat.Message{}, false
	}
	return sess.Messages[len(sess.Messages)-1], true
}

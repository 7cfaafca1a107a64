package telegram

import (
	"context"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/suPer8Hu/nextile-ai/internal/observability"
)

// Telegram rejects texts longer than 4096 characters.
const maxMessageRunes = 4000

// replyStream mirrors a growing reply into Telegram messages. The text is
// sent once, then edited at most every interval; overflow spills into new
// messages.
type replyStream struct {
	api      Sender
	chatID   int64
	interval time.Duration
	now      func() time.Time

	text     string
	sent     []string
	ids      []int
	lastSync time.Time
}

func newReplyStream(sender Sender, chatID int64, interval time.Duration) *replyStream {
	return &replyStream{api: sender, chatID: chatID, interval: interval, now: time.Now}
}

func (r *replyStream) Append(ctx context.Context, delta string) {
	r.text += delta
	if r.now().Sub(r.lastSync) >= r.interval {
		r.sync(ctx)
	}
}

// Finish pushes the complete reply regardless of the interval.
func (r *replyStream) Finish(ctx context.Context, full string) {
	r.text = full
	r.sync(ctx)
}

// Replace turns an already visible partial reply into text: the first
// message is edited and any overflow messages are deleted. It reports false
// when nothing has been sent yet.
func (r *replyStream) Replace(ctx context.Context, text string) bool {
	if len(r.ids) == 0 {
		return false
	}
	log := observability.LoggerFromContext(ctx)
	if _, err := r.api.Send(api.NewEditMessageText(r.chatID, r.ids[0], text)); err != nil {
		log.Warn("edit reply", "chat_id", r.chatID, "err", err)
	}
	if len(r.ids) > 1 {
		if _, err := r.api.Request(api.NewDeleteMessages(r.chatID, r.ids[1:])); err != nil {
			log.Warn("delete reply", "chat_id", r.chatID, "err", err)
		}
	}
	r.text = text
	r.ids = r.ids[:1]
	r.sent = []string{text}
	return true
}

func (r *replyStream) sync(ctx context.Context) {
	r.lastSync = r.now()
	log := observability.LoggerFromContext(ctx)
	for i, part := range splitText(r.text, maxMessageRunes) {
		switch {
		case part == "":
			continue
		case i >= len(r.ids):
			msg, err := r.api.Send(api.NewMessage(r.chatID, part))
			if err != nil {
				log.Warn("send reply", "chat_id", r.chatID, "err", err)
				return
			}
			r.ids = append(r.ids, msg.MessageID)
			r.sent = append(r.sent, part)
		case r.sent[i] != part:
			if _, err := r.api.Send(api.NewEditMessageText(r.chatID, r.ids[i], part)); err != nil {
				log.Warn("edit reply", "chat_id", r.chatID, "err", err)
				return
			}
			r.sent[i] = part
		}
	}
}

// splitText cuts s into pieces of at most n runes.
func splitText(s string, n int) []string {
	runes := []rune(s)
	if len(runes) <= n {
		return []string{s}
	}
	var parts []string
	for len(runes) > n {
		parts = append(parts, string(runes[:n]))
		runes = runes[n:]
	}
	return append(parts, string(runes))
}

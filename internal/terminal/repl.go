// Package terminal is a line-oriented presentation of the conversation
// controller: liner for input, glamour for markdown, lipgloss for labels.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/suPer8Hu/nextile-ai/internal/chat"
	"github.com/suPer8Hu/nextile-ai/internal/observability"
)

const DefaultImageDir = "nextile-images"

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	aiStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

const helpText = `:new        start a new chat
:list       list saved chats
:open <n>   continue chat n from :list
:clear      delete all chats
:quit       leave
/draw <prompt> generates an image`

type REPL struct {
	chat *chat.Service
	out  io.Writer

	// ImageDir receives generated images as <conversation>-<index>.png.
	ImageDir string

	markdown func(string) string
	sess     *chat.Session
}

func New(svc *chat.Service, out io.Writer) *REPL {
	r := &REPL{chat: svc, out: out, ImageDir: DefaultImageDir, markdown: plain}
	tr, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
	if err == nil {
		r.markdown = func(s string) string {
			rendered, err := tr.Render(s)
			if err != nil {
				return s
			}
			return strings.TrimRight(rendered, "\n")
		}
	}
	return r
}

func plain(s string) string { return s }

// Start prints the header and begins a fresh conversation.
func (r *REPL) Start() {
	p := r.chat.Persona()
	fmt.Fprintln(r.out, aiStyle.Render(p.Name))
	fmt.Fprintln(r.out, dimStyle.Render(fmt.Sprintf("Created by %s · %s", p.Creator, p.CreatorURL)))
	if p.Banner != "" {
		fmt.Fprintln(r.out, r.markdown(p.Banner))
	}
	fmt.Fprintln(r.out, dimStyle.Render("Type :help for commands."))
	r.sess = r.chat.StartNew()
	r.printHistory()
}

// Run reads lines until :quit, EOF or Ctrl+C at the prompt. Ctrl+C while a
// reply is generating cancels only that turn.
func (r *REPL) Run(ctx context.Context) error {
	if r.sess == nil {
		r.Start()
	}
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt("you> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Fprintln(r.out)
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)

		if r.handleInterruptible(ctx, input) {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (r *REPL) handleInterruptible(ctx context.Context, input string) bool {
	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)
	go func() {
		select {
		case <-sig:
			cancel()
		case <-turnCtx.Done():
		}
	}()
	return r.Handle(turnCtx, input)
}

// Handle runs one input line and reports whether the user asked to quit.
func (r *REPL) Handle(ctx context.Context, input string) bool {
	if r.sess == nil {
		r.sess = r.chat.StartNew()
	}
	if strings.HasPrefix(input, ":") {
		return r.command(ctx, input)
	}

	streamed := false
	_, err := r.chat.Send(ctx, r.sess, input, func(e chat.Event) {
		switch e.Kind {
		case chat.EventDrawing:
			fmt.Fprintln(r.out, dimStyle.Render(e.Text))
		case chat.EventChunk:
			if !streamed {
				fmt.Fprint(r.out, aiStyle.Render("ai> "))
				streamed = true
			}
			fmt.Fprint(r.out, e.Text)
		case chat.EventAssistant:
			if e.Message.IsImage() {
				r.printImage(ctx, len(r.sess.Messages)-1, *e.Message)
				return
			}
			if !streamed {
				fmt.Fprint(r.out, aiStyle.Render("ai> "))
			}
			fmt.Fprintln(r.out)
		case chat.EventNotice:
			if streamed {
				fmt.Fprintln(r.out)
			}
			fmt.Fprintln(r.out, noticeStyle.Render(e.Text))
		}
	})
	if err != nil && !errors.Is(err, chat.ErrEmptyInput) {
		fmt.Fprintln(r.out, noticeStyle.Render("Could not save the conversation: "+err.Error()))
	}
	return false
}

func (r *REPL) command(ctx context.Context, input string) bool {
	name, arg, _ := strings.Cut(strings.TrimPrefix(strings.TrimSpace(input), ":"), " ")
	switch strings.ToLower(name) {
	case "q", "quit", "exit":
		return true

	case "help", "h":
		fmt.Fprintln(r.out, helpText)

	case "new":
		r.sess = r.chat.StartNew()
		r.printHistory()

	case "list", "ls":
		convs, err := r.chat.Conversations(ctx)
		if err != nil {
			r.historyError(ctx, err)
			return false
		}
		if len(convs) == 0 {
			fmt.Fprintln(r.out, dimStyle.Render("No saved chats yet."))
			return false
		}
		for i, c := range convs {
			entry := fmt.Sprintf("%2d) %s  %s", i+1, c.Title, dimStyle.Render(c.Date))
			if c.ID == r.sess.ID {
				entry = activeStyle.Render(entry + " *")
			}
			fmt.Fprintln(r.out, entry)
		}

	case "open":
		n, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil || n < 1 {
			fmt.Fprintln(r.out, noticeStyle.Render("Usage: :open <n>"))
			return false
		}
		convs, err := r.chat.Conversations(ctx)
		if err != nil {
			r.historyError(ctx, err)
			return false
		}
		if n > len(convs) {
			fmt.Fprintln(r.out, noticeStyle.Render("No such chat. Use :list."))
			return false
		}
		sess, err := r.chat.Resume(ctx, convs[n-1].ID)
		if err != nil {
			r.historyError(ctx, err)
			return false
		}
		r.sess = sess
		r.printHistory()

	case "clear":
		sess, err := r.chat.ClearHistory(ctx)
		if err != nil {
			r.historyError(ctx, err)
			return false
		}
		r.sess = sess
		fmt.Fprintln(r.out, dimStyle.Render("History cleared."))
		r.printHistory()

	default:
		fmt.Fprintln(r.out, noticeStyle.Render("Unknown command :"+name+". Type :help."))
	}
	return false
}

func (r *REPL) historyError(ctx context.Context, err error) {
	observability.LoggerFromContext(ctx).Error("chat history", "err", err)
	fmt.Fprintln(r.out, noticeStyle.Render("Chat history is unavailable right now."))
}

func (r *REPL) printHistory() {
	for i, m := range r.sess.Messages {
		switch {
		case m.IsImage():
			r.printImage(context.Background(), i, m)
		case m.Role == chat.RoleUser:
			fmt.Fprintln(r.out, userStyle.Render("you> ")+m.Text)
		default:
			fmt.Fprintln(r.out, aiStyle.Render("ai> ")+r.markdown(m.Text))
		}
	}
}

// printImage writes the image to ImageDir and prints its path.
func (r *REPL) printImage(ctx context.Context, index int, m chat.Message) {
	path, err := SaveImage(r.ImageDir, r.sess.ID, index, m.Image)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("save image", "err", err)
		fmt.Fprintln(r.out, noticeStyle.Render("Could not save the image: "+err.Error()))
		return
	}
	fmt.Fprintln(r.out, aiStyle.Render("ai> ")+"image saved to "+path)
}

func SaveImage(dir, conversationID string, index int, png []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%d.png", conversationID, index))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

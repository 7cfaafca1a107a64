package chat

import "strings"

// DrawCommand routes an input to image generation when it leads the text,
// in any letter case.
const DrawCommand = "/draw"

type RouteKind int

const (
	RouteChat RouteKind = iota
	RouteDraw
)

func (k RouteKind) String() string {
	if k == RouteDraw {
		return "draw"
	}
	return "chat"
}

// Route is the outcome of classifying one user input. For RouteDraw, Prompt
// is the text after the command, trimmed.
type Route struct {
	Kind   RouteKind
	Prompt string
}

func ClassifyInput(text string) Route {
	n := len(DrawCommand)
	if len(text) >= n && strings.EqualFold(text[:n], DrawCommand) {
		return Route{Kind: RouteDraw, Prompt: strings.TrimSpace(text[n:])}
	}
	return Route{Kind: RouteChat, Prompt: text}
}

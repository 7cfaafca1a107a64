package chat

import "testing"

func TestClassifyInput(t *testing.T) {
	cases := []struct {
		in     string
		kind   RouteKind
		prompt string
	}{
		{"/draw a cat", RouteDraw, "a cat"},
		{"/DRAW a cat", RouteDraw, "a cat"},
		{"/Draw", RouteDraw, ""},
		{"/draw   a red fox  ", RouteDraw, "a red fox"},
		{"/drawing now", RouteDraw, "ing now"},
		{"  /draw a cat", RouteChat, "  /draw a cat"},
		{"draw a cat", RouteChat, "draw a cat"},
		{"drawing something", RouteChat, "drawing something"},
		{"/dra", RouteChat, "/dra"},
		{"hello", RouteChat, "hello"},
	}
	for _, tc := range cases {
		got := ClassifyInput(tc.in)
		if got.Kind != tc.kind || got.Prompt != tc.prompt {
			t.Fatalf("ClassifyInput(%q) = %+v, want kind=%s prompt=%q", tc.in, got, tc.kind, tc.prompt)
		}
	}
}

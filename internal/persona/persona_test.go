package persona

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	p := Default()

	require.Equal(t, "Nextile AI", p.Name)
	require.Len(t, p.Greetings, 6)
	require.Contains(t, p.SystemInstruction, "/draw")
	require.Contains(t, p.SystemInstruction, "Knight")
	require.True(t, strings.HasPrefix(p.SystemInstruction, "You are Nextile AI. You are a kid-friendly"))
	require.Equal(t, "Error generating image.", p.Notices.ImageFailed)
	require.Equal(t, "🎨 Drawing 'a fox'...", p.DrawingNotice("a fox"))
}

func TestDrawingNotice_TemplateIsNotAFormat(t *testing.T) {
	p := Default()
	require.Equal(t, "🎨 Drawing '100%d done'...", p.DrawingNotice("100%d done"))

	p.Notices.Drawing = "Painting now"
	require.Equal(t, "Painting now", p.DrawingNotice("a fox"))

	p.Notices.Drawing = "%s at 50%"
	require.Equal(t, "a fox at 50%", p.DrawingNotice("a fox"))

	p.Notices.Drawing = ""
	require.Empty(t, p.DrawingNotice("a fox"))
}

func TestGreeting_AlwaysFromSet(t *testing.T) {
	p := Default()
	r := rand.New(rand.NewPCG(1, 2))
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		g := p.Greeting(r)
		require.True(t, p.IsGreeting(g), "unexpected greeting %q", g)
		seen[g] = true
	}
	require.Len(t, seen, len(p.Greetings), "200 draws should cover all greetings")
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte(`name = "x"`))
	require.True(t, errors.Is(err, ErrInvalidPersona))

	_, err = Parse([]byte(`name = [`))
	require.Error(t, err)
}

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default().Name, p.Name)
}

const customPersona = `
name = "Other"
greetings = ["hey"]
system_instruction = "be nice"
[notices]
chat_failed = "oops"
image_failed = "no image"
`

func TestWatch_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "persona.toml")
	require.NoError(t, os.WriteFile(path, defaultTOML, 0o600))

	h := NewHolder(Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, Watch(ctx, path, h))

	require.NoError(t, os.WriteFile(path, []byte(customPersona), 0o600))

	require.Eventually(t, func() bool {
		return h.Get().Name == "Other"
	}, 5*time.Second, 20*time.Millisecond)
	require.Equal(t, []string{"hey"}, h.Get().Greetings)
}

// Package persona holds the assistant's branding: its name, the greeting set,
// the fixed system instruction and the user-visible notices.
package persona

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync/atomic"

	"github.com/BurntSushi/toml"
)

//go:embed persona.toml
var defaultTOML []byte

var ErrInvalidPersona = errors.New("invalid persona")

type Notices struct {
	ChatFailed  string `toml:"chat_failed"`
	ImageFailed string `toml:"image_failed"`
	Drawing     string `toml:"drawing"`
}

type Persona struct {
	Name              string   `toml:"name"`
	Creator           string   `toml:"creator"`
	CreatorURL        string   `toml:"creator_url"`
	Banner            string   `toml:"banner"`
	Placeholder       string   `toml:"placeholder"`
	Greetings         []string `toml:"greetings"`
	SystemInstruction string   `toml:"system_instruction"`
	Notices           Notices  `toml:"notices"`
}

// Default returns the embedded persona.
func Default() Persona {
	p, err := Parse(defaultTOML)
	if err != nil {
		panic(fmt.Sprintf("embedded persona: %v", err))
	}
	return p
}

// Load reads a persona file. An empty path yields the embedded default.
func Load(path string) (Persona, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Persona{}, fmt.Errorf("read persona %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes and validates a TOML persona.
func Parse(b []byte) (Persona, error) {
	var p Persona
	if _, err := toml.Decode(string(b), &p); err != nil {
		return Persona{}, fmt.Errorf("decode persona: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Persona{}, err
	}
	return p, nil
}

func (p Persona) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidPersona)
	}
	if len(p.Greetings) == 0 {
		return fmt.Errorf("%w: no greetings", ErrInvalidPersona)
	}
	for i, g := range p.Greetings {
		if strings.TrimSpace(g) == "" {
			return fmt.Errorf("%w: greeting %d is empty", ErrInvalidPersona, i)
		}
	}
	if strings.TrimSpace(p.SystemInstruction) == "" {
		return fmt.Errorf("%w: system instruction is empty", ErrInvalidPersona)
	}
	if p.Notices.ChatFailed == "" || p.Notices.ImageFailed == "" {
		return fmt.Errorf("%w: failure notices are required", ErrInvalidPersona)
	}
	return nil
}

// Greeting picks one greeting uniformly at random. A nil r uses the global source.
func (p Persona) Greeting(r *rand.Rand) string {
	if r == nil {
		return p.Greetings[rand.IntN(len(p.Greetings))]
	}
	return p.Greetings[r.IntN(len(p.Greetings))]
}

// IsGreeting reports whether s is one of the fixed greetings.
func (p Persona) IsGreeting(s string) bool {
	for _, g := range p.Greetings {
		if g == s {
			return true
		}
	}
	return false
}

// DrawingNotice renders the progress line shown while an image is generated.
// The first %s in the template is replaced by the prompt; other verbs are
// left as written.
func (p Persona) DrawingNotice(prompt string) string {
	if p.Notices.Drawing == "" {
		return ""
	}
	return strings.Replace(p.Notices.Drawing, "%s", prompt, 1)
}

// Holder shares a Persona between goroutines and lets Watch swap it.
type Holder struct {
	v atomic.Pointer[Persona]
}

func NewHolder(p Persona) *Holder {
	h := &Holder{}
	h.Set(p)
	return h
}

func (h *Holder) Get() Persona {
	return *h.v.Load()
}

func (h *Holder) Set(p Persona) {
	h.v.Store(&p)
}

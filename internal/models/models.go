// Package models is the catalog of chat models context is prepared for.
package models

import (
	"fmt"
	"os"
	"os/exec"
	"slices"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/hpungsan/buddy/internal/errors"
)

// Status values reported for a model.
const (
	StatusAvailable  = "available"
	StatusConfigured = "configured"
	StatusError      = "error"
)

// Model describes a chat model.
type Model struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	ContextWindow int    `json:"context_window"`
	Encoding      string `json:"encoding"`
}

// ModelStatus is a model plus whether the user has it set up.
type ModelStatus struct {
	Model
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Fit reports whether a collection of the given weight fits a model.
type Fit struct {
	Model         string `json:"model"`
	ContextWindow int    `json:"context_window"`
	Tokens        int    `json:"tokens"`
	Fits          bool   `json:"fits"`
	Headroom      int    `json:"headroom"`
}

// Catalog lists the known models in display order.
var Catalog = []Model{
	{ID: "gpt-4o", Name: "GPT-4o", Provider: "OpenAI", ContextWindow: 128000, Encoding: "o200k_base"},
	{ID: "o3-mini", Name: "o3-mini", Provider: "OpenAI", ContextWindow: 200000, Encoding: "o200k_base"},
	{ID: "o3", Name: "o3", Provider: "OpenAI", ContextWindow: 200000, Encoding: "o200k_base"},
	{ID: "claude-3.5-sonnet", Name: "Claude 3.5 Sonnet", Provider: "Anthropic", ContextWindow: 200000, Encoding: "cl100k_base"},
	{ID: "claude-sonnet-4", Name: "Claude Sonnet 4", Provider: "Anthropic", ContextWindow: 200000, Encoding: "cl100k_base"},
}

// Tokenizer counts tokens for a BPE encoding.
type Tokenizer interface {
	CountTokens(encoding, text string) (int, error)
}

// Registry answers model questions. The zero value is not usable; call New.
type Registry struct {
	models    []Model
	tokenizer Tokenizer
	getenv    func(string) string
	lookPath  func(string) (string, error)
}

// Options configures a Registry. Nil fields use the process environment and
// tiktoken.
type Options struct {
	Tokenizer Tokenizer
	Getenv    func(string) string
	LookPath  func(string) (string, error)
}

// New creates a Registry over Catalog.
func New(opts Options) *Registry {
	r := &Registry{
		models:    slices.Clone(Catalog),
		tokenizer: opts.Tokenizer,
		getenv:    opts.Getenv,
		lookPath:  opts.LookPath,
	}
	if r.tokenizer == nil {
		r.tokenizer = NewTiktoken()
	}
	if r.getenv == nil {
		r.getenv = os.Getenv
	}
	if r.lookPath == nil {
		r.lookPath = exec.LookPath
	}
	return r
}

// List returns the catalog.
func (r *Registry) List() []Model {
	return slices.Clone(r.models)
}

// Get looks up a model by id.
func (r *Registry) Get(id string) (*Model, error) {
	for _, m := range r.models {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown model %q", id))
}

// Statuses reports which models are usable. OpenAI models need an API key;
// Anthropic models need the claude CLI or an API key.
func (r *Registry) Statuses() []ModelStatus {
	out := make([]ModelStatus, 0, len(r.models))
	for _, m := range r.models {
		st := ModelStatus{Model: m, Status: StatusAvailable}
		switch m.Provider {
		case "OpenAI":
			if r.getenv("OPENAI_API_KEY") != "" {
				st.Status = StatusConfigured
				st.Detail = "OPENAI_API_KEY is set"
			}
		case "Anthropic":
			if path, err := r.lookPath("claude"); err == nil {
				st.Status = StatusConfigured
				st.Detail = "claude CLI at " + path
			} else if r.getenv("ANTHROPIC_API_KEY") != "" {
				st.Status = StatusConfigured
				st.Detail = "ANTHROPIC_API_KEY is set"
			}
		}
		out = append(out, st)
	}
	return out
}

// Fit checks a weight against a model's context window.
func (r *Registry) Fit(id string, tokens int) (*Fit, error) {
	m, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return &Fit{
		Model:         m.ID,
		ContextWindow: m.ContextWindow,
		Tokens:        tokens,
		Fits:          tokens <= m.ContextWindow,
		Headroom:      m.ContextWindow - tokens,
	}, nil
}

// FitAll checks a weight against every model.
func (r *Registry) FitAll(tokens int) []Fit {
	out := make([]Fit, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, Fit{
			Model:         m.ID,
			ContextWindow: m.ContextWindow,
			Tokens:        tokens,
			Fits:          tokens <= m.ContextWindow,
			Headroom:      m.ContextWindow - tokens,
		})
	}
	return out
}

// CountTokens counts text with the model's encoding.
func (r *Registry) CountTokens(id, text string) (int, error) {
	m, err := r.Get(id)
	if err != nil {
		return 0, err
	}
	n, err := r.tokenizer.CountTokens(m.Encoding, text)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// Tiktoken counts tokens with tiktoken encodings, loading each one on first
// use (this may download the BPE ranks).
type Tiktoken struct {
	mu   sync.Mutex
	encs map[string]*tiktoken.Tiktoken
}

// NewTiktoken returns a lazily initialized tiktoken counter.
func NewTiktoken() *Tiktoken {
	return &Tiktoken{encs: make(map[string]*tiktoken.Tiktoken)}
}

// CountTokens implements Tokenizer.
func (t *Tiktoken) CountTokens(encoding, text string) (int, error) {
	enc, err := t.encoding(encoding)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

func (t *Tiktoken) encoding(name string) (*tiktoken.Tiktoken, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if enc, ok := t.encs[name]; ok {
		return enc, nil
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("init tiktoken encoding %s: %w", name, err)
	}
	t.encs[name] = enc
	return enc, nil
}

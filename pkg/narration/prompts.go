package narration

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// Prompt template names.
const (
	PromptCityDescription = "city_description"
	PromptNearbyPlaces    = "nearby_places"
)

//go:embed prompts/*.tmpl
var embeddedPrompts embed.FS

var promptFuncs = template.FuncMap{
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
}

// Prompts holds the parsed prompt templates.
type Prompts struct {
	templates map[string]*template.Template
}

// LoadPrompts parses the built-in templates. When dir is set, any
// <name>.tmpl found there replaces the built-in one.
func LoadPrompts(dir string) (*Prompts, error) {
	p := &Prompts{templates: make(map[string]*template.Template)}
	for _, name := range []string{PromptCityDescription, PromptNearbyPlaces} {
		text, err := readPrompt(dir, name)
		if err != nil {
			return nil, err
		}
		tmpl, err := template.New(name).Funcs(promptFuncs).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse prompt %q: %w", name, err)
		}
		p.templates[name] = tmpl
	}
	return p, nil
}

func readPrompt(dir, name string) (string, error) {
	if dir != "" {
		data, err := os.ReadFile(filepath.Join(dir, name+".tmpl"))
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("read prompt %q: %w", name, err)
		}
	}
	data, err := embeddedPrompts.ReadFile("prompts/" + name + ".tmpl")
	if err != nil {
		return "", fmt.Errorf("prompt %q not found: %w", name, err)
	}
	return string(data), nil
}

// Render executes the named template with data.
func (p *Prompts) Render(name string, data any) (string, error) {
	tmpl, ok := p.templates[name]
	if !ok {
		return "", fmt.Errorf("prompt %q not loaded", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

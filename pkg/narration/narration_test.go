package narration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/teslashibe/go-glance/internal/log"
	"github.com/teslashibe/go-glance/pkg/inference"
)

func newTestProvider(t *testing.T, llm inference.Provider) *Provider {
	t.Helper()
	prompts, err := LoadPrompts("")
	if err != nil {
		t.Fatalf("LoadPrompts: %v", err)
	}
	return NewProvider(llm, prompts, WithLogger(log.Discard()))
}

func TestCityDescription(t *testing.T) {
	llm := inference.WithReply("  Lisbon is a city of hills.  ")
	p := newTestProvider(t, llm)

	text, ok := p.CityDescription(context.Background(), "Lisbon")
	if !ok || text != "Lisbon is a city of hills." {
		t.Fatalf("got %q, %v", text, ok)
	}
	if !strings.Contains(llm.LastPrompt(), "Lisbon") {
		t.Errorf("prompt missing city: %q", llm.LastPrompt())
	}
	if llm.LastCall().Request.MaxTokens != 300 {
		t.Errorf("max tokens = %d", llm.LastCall().Request.MaxTokens)
	}
}

func TestCityDescriptionAbsent(t *testing.T) {
	tests := []struct {
		name string
		llm  *inference.Mock
		city string
	}{
		{"empty city", inference.WithReply("x"), ""},
		{"no credential", &inference.Mock{Unconfigured: true}, "Lisbon"},
		{"service error", inference.WithError(errors.New("boom")), "Lisbon"},
		{"empty completion", inference.WithReply("   "), "Lisbon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, tt.llm)
			if text, ok := p.CityDescription(context.Background(), tt.city); ok {
				t.Errorf("expected absent, got %q", text)
			}
		})
	}
}

func TestCityDescriptionSkipsCallWhenUnconfigured(t *testing.T) {
	llm := &inference.Mock{Unconfigured: true}
	p := newTestProvider(t, llm)
	p.CityDescription(context.Background(), "Lisbon")
	if llm.CallCount("Chat") != 0 {
		t.Error("Chat should not be called without a credential")
	}
}

func TestNearbyPlacesPrompt(t *testing.T) {
	t.Run("previous responses preferred", func(t *testing.T) {
		llm := inference.WithReply("Try the Belem Tower.")
		p := newTestProvider(t, llm)
		_, ok := p.NearbyPlaces(context.Background(), NearbyRequest{
			Street:            "Rua Augusta",
			City:              "Lisbon",
			Country:           "Portugal",
			Mentioned:         []string{"Alfama"},
			PreviousResponses: []string{"Alfama is charming."},
		})
		if !ok {
			t.Fatal("expected text")
		}
		prompt := llm.LastPrompt()
		for _, want := range []string{"Rua Augusta", "Lisbon", "Portugal", "1. Alfama is charming."} {
			if !strings.Contains(prompt, want) {
				t.Errorf("prompt missing %q:\n%s", want, prompt)
			}
		}
		if strings.Contains(prompt, "already suggested") {
			t.Error("place list should not be used when responses exist")
		}
	})

	t.Run("falls back to place names", func(t *testing.T) {
		llm := inference.WithReply("ok")
		p := newTestProvider(t, llm)
		p.NearbyPlaces(context.Background(), NearbyRequest{
			City:      "Lisbon",
			Country:   "Portugal",
			Mentioned: []string{"Alfama", "Baixa"},
		})
		prompt := llm.LastPrompt()
		if !strings.Contains(prompt, "Alfama, Baixa") {
			t.Errorf("prompt missing place list:\n%s", prompt)
		}
		if !strings.Contains(prompt, UnknownStreet) {
			t.Errorf("prompt missing street placeholder:\n%s", prompt)
		}
	})

	t.Run("requires city and country", func(t *testing.T) {
		llm := inference.WithReply("ok")
		p := newTestProvider(t, llm)
		if _, ok := p.NearbyPlaces(context.Background(), NearbyRequest{City: "Lisbon"}); ok {
			t.Error("expected absent without country")
		}
		if llm.CallCount("Chat") != 0 {
			t.Error("Chat should not be called")
		}
	})
}

func TestLoadPromptsOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "city_description.tmpl"), []byte("Describe {{.City}} briefly."), 0o644); err != nil {
		t.Fatal(err)
	}
	prompts, err := LoadPrompts(dir)
	if err != nil {
		t.Fatalf("LoadPrompts: %v", err)
	}
	got, err := prompts.Render(PromptCityDescription, struct{ City string }{"Porto"})
	if err != nil || got != "Describe Porto briefly." {
		t.Errorf("got %q, %v", got, err)
	}
	if _, err := prompts.Render(PromptNearbyPlaces, NearbyRequest{City: "Porto", Country: "Portugal"}); err != nil {
		t.Errorf("built-in nearby prompt should still load: %v", err)
	}
}

func TestExtractPlaceNames(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			"multi-word names",
			"Head over to Central Park, then see the Museum of Modern Art.",
			[]string{"Central Park", "Museum of Modern Art"},
		},
		{
			"leading stop words stripped",
			"The Louvre is close. Nearby Tuileries Garden is lovely.",
			[]string{"Louvre", "Tuileries Garden"},
		},
		{
			"sentence-initial words ignored",
			"Walk north. Enjoy the view from Montmartre.",
			[]string{"Montmartre"},
		},
		{
			"deduplicated",
			"Visit Alfama today. You will love Alfama.",
			[]string{"Alfama"},
		},
		{
			"capped at five",
			"See Aa Park, Bb Park, Cc Park, Dd Park, Ee Park, and Ff Park.",
			[]string{"Aa Park", "Bb Park", "Cc Park", "Dd Park", "Ee Park"},
		},
		{"nothing", "just walk around and enjoy it.", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractPlaceNames(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHistory(t *testing.T) {
	h := NewHistory(2)
	h.Record("u1", "You should see Central Park.")
	h.Record("u1", "Try Times Square and Central Park.")
	h.Record("u1", "The High Line is nice.")

	places, responses := h.Snapshot("u1")
	if len(responses) != 2 || responses[0] != "Try Times Square and Central Park." {
		t.Errorf("responses = %q", responses)
	}
	want := []string{"Central Park", "Times Square", "High Line"}
	if !reflect.DeepEqual(places, want) {
		t.Errorf("places = %q, want %q", places, want)
	}

	if p, r := h.Snapshot("u2"); p != nil || r != nil {
		t.Error("other users should have no history")
	}

	h.Clear("u1")
	if p, r := h.Snapshot("u1"); p != nil || r != nil {
		t.Error("expected empty history after Clear")
	}
}

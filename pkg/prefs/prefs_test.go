package prefs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestThemeDefaultsToDark(t *testing.T) {
	s := openTestStore(t)
	if got := s.Theme(context.Background(), "u1"); got != ThemeDark {
		t.Errorf("theme = %q, want dark", got)
	}
}

func TestSetThemeRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SetTheme(ctx, "u1", ThemeLight); err != nil {
		t.Fatal(err)
	}
	if got := s.Theme(ctx, "u1"); got != ThemeLight {
		t.Errorf("theme = %q, want light", got)
	}
	if got := s.Theme(ctx, "u2"); got != ThemeDark {
		t.Errorf("other user theme = %q, want dark", got)
	}

	if err := s.SetTheme(ctx, "u1", ThemeDark); err != nil {
		t.Fatal(err)
	}
	if got := s.Theme(ctx, "u1"); got != ThemeDark {
		t.Errorf("theme after overwrite = %q", got)
	}
}

func TestSetThemeRejectsUnknown(t *testing.T) {
	s := openTestStore(t)
	for _, v := range []string{"", "blue", "Dark"} {
		if err := s.SetTheme(context.Background(), "u1", v); !errors.Is(err, ErrInvalidTheme) {
			t.Errorf("SetTheme(%q) err = %v", v, err)
		}
	}
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	v, ok, err := s.Get(context.Background(), "u", "nope")
	if err != nil || ok || v != "" {
		t.Errorf("got %q, %v, %v", v, ok, err)
	}
}

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "u", "k", "v"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if v, ok, _ := s.Get(ctx, "u", "k"); !ok || v != "v" {
		t.Errorf("got %q, %v", v, ok)
	}
}

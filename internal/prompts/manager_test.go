package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewManagerLoadsTemplates(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	for _, name := range []string{"content_review", "event_verify"} {
		if _, err := m.Render(name, map[string]any{"Title": "t", "Body": "b"}); err != nil {
			t.Errorf("Render(%s): %v", name, err)
		}
	}
}

func TestRenderContentReview(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	out, err := m.Render("content_review", map[string]any{
		"Title": "Dog walking tips",
		"Body":  "Walk slowly.",
		"Tags":  []string{"pets", "outdoors"},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{"Dog walking tips", "Walk slowly.", "pets, outdoors", `"suitable"`} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered prompt missing %q:\n%s", want, out)
		}
	}
}

func TestLoadOverrides(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	dir := t.TempDir()
	override := "Review this post titled {{.Title}} with extra scrutiny.\n"
	if err := os.WriteFile(filepath.Join(dir, "content_review.txt.tmpl"), []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	if err := m.LoadOverrides(dir); err != nil {
		t.Fatalf("LoadOverrides: %v", err)
	}

	out, err := m.Render("content_review", map[string]any{"Title": "Dog walking tips"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, "extra scrutiny") {
		t.Errorf("override not applied:\n%s", out)
	}

	// embedded templates without an override file stay intact
	if _, err := m.Render("event_verify", map[string]any{"Title": "t", "Body": "b"}); err != nil {
		t.Errorf("Render(event_verify): %v", err)
	}
}

func TestLoadOverridesMissingDir(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.LoadOverrides(filepath.Join(t.TempDir(), "absent")); err != nil {
		t.Errorf("missing dir should be a no-op, got %v", err)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := m.Render("nope", nil); err == nil {
		t.Error("expected error for unknown template")
	}
}

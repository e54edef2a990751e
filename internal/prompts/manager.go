package prompts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	errs "service-marketplace/pkg/errors"
)

// Manager loads, compiles and renders prompt templates.
// Templates are compiled once at startup for performance.
// Simple and extensible: variants can be added as new files (e.g., content_review@v2.txt.tmpl).
type Manager struct {
	mu   sync.RWMutex
	tpls map[string]*template.Template
}

// NewManager parses all embedded templates.
func NewManager() (*Manager, error) {
	m := &Manager{tpls: make(map[string]*template.Template)}

	// Walk embedded FS and parse .tmpl files
	err := fs.WalkDir(FS(), ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(p, ".txt.tmpl") {
			return nil
		}
		b, rerr := fs.ReadFile(FS(), p)
		if rerr != nil {
			return fmt.Errorf("read template %s: %w", p, rerr)
		}
		name := strings.TrimSuffix(filepath.Base(p), ".txt.tmpl")
		tpl, perr := template.New(name).Parse(string(b))
		if perr != nil {
			return fmt.Errorf("parse template %s: %w", p, perr)
		}
		m.tpls[name] = tpl
		return nil
	})
	if err != nil {
		return nil, errs.NewValidation("prompts.NewManager", "failed to load prompts", err)
	}
	return m, nil
}

// LoadOverrides parses .txt.tmpl files from an on-disk directory, replacing
// embedded templates of the same name. Prompts can be tuned per deployment
// without a rebuild. A missing directory is not an error.
func (m *Manager) LoadOverrides(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return errs.NewValidation("prompts.LoadOverrides", fmt.Sprintf("failed to read prompt dir %s", dir), err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt.tmpl") {
			continue
		}
		b, rerr := os.ReadFile(filepath.Join(dir, e.Name()))
		if rerr != nil {
			return errs.NewValidation("prompts.LoadOverrides", fmt.Sprintf("read template %s", e.Name()), rerr)
		}
		name := strings.TrimSuffix(e.Name(), ".txt.tmpl")
		tpl, perr := template.New(name).Parse(string(b))
		if perr != nil {
			return errs.NewValidation("prompts.LoadOverrides", fmt.Sprintf("parse template %s", e.Name()), perr)
		}
		m.mu.Lock()
		m.tpls[name] = tpl
		m.mu.Unlock()
	}
	return nil
}

// Render executes a named template with data and returns the result string.
func (m *Manager) Render(name string, data any) (string, error) {
	m.mu.RLock()
	tpl, ok := m.tpls[name]
	m.mu.RUnlock()
	if !ok {
		return "", errs.NewValidation("prompts.Render", fmt.Sprintf("prompt template not found: %s", name), nil)
	}
	var sb strings.Builder
	if err := tpl.Execute(&sb, data); err != nil {
		return "", errs.NewValidation("prompts.Render", fmt.Sprintf("execute template %s", name), err)
	}
	return sb.String(), nil
}

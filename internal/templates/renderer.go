// Package templates renders the fallback stories used when the text provider
// is not viable. Templates resolve from an optional folder first, then the
// built-in theme library, so operators can restyle the fallback without a
// rebuild.
package templates

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	sprig "github.com/Masterminds/sprig/v3"
)

// StoryData is the context available to fallback story templates.
type StoryData struct {
	Keyword        string
	VerseID        int
	VerseTamil     string
	VerseEnglish   string
	Chapter        string
	ChapterEnglish string
}

// Renderer compiles and executes fallback templates. File-backed templates
// resolve strictly inside the configured folder; sprig's filesystem and
// environment helpers are removed so templates cannot reach outside it.
type Renderer struct {
	folder string
	funcs  template.FuncMap

	mu       sync.Mutex
	compiled map[string]*template.Template
}

// NewRenderer constructs a renderer rooted at folder. An empty folder leaves
// only the built-in templates available.
func NewRenderer(folder string) *Renderer {
	funcs := sprig.TxtFuncMap()
	for _, name := range []string{"env", "expandenv", "readDir", "mustReadDir", "readFile", "mustReadFile", "glob"} {
		delete(funcs, name)
	}
	return &Renderer{
		folder:   strings.TrimSpace(folder),
		funcs:    funcs,
		compiled: make(map[string]*template.Template),
	}
}

// RenderStory produces a fallback story for the given theme and language
// ("en" or "ta"). Unknown themes fall back to the generic template.
func (r *Renderer) RenderStory(theme, language string, data StoryData) (string, error) {
	name := templateName(theme, language)
	tmpl, err := r.lookup(name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("templates: execute %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func (r *Renderer) lookup(name string) (*template.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tmpl, ok := r.compiled[name]; ok {
		return tmpl, nil
	}

	source, ok := r.loadSource(name)
	if !ok {
		// fall back to the generic template for the same language
		parts := strings.SplitN(name, ".", 2)
		generic := "default." + parts[len(parts)-1]
		if name != generic {
			return r.lookupLocked(generic)
		}
		return nil, fmt.Errorf("templates: no template for %s", name)
	}

	tmpl, err := template.New(name).Funcs(r.funcs).Parse(source)
	if err != nil {
		return nil, fmt.Errorf("templates: parse %s: %w", name, err)
	}
	r.compiled[name] = tmpl
	return tmpl, nil
}

// lookupLocked resolves a template while the mutex is already held.
func (r *Renderer) lookupLocked(name string) (*template.Template, error) {
	if tmpl, ok := r.compiled[name]; ok {
		return tmpl, nil
	}
	source, ok := r.loadSource(name)
	if !ok {
		return nil, fmt.Errorf("templates: no template for %s", name)
	}
	tmpl, err := template.New(name).Funcs(r.funcs).Parse(source)
	if err != nil {
		return nil, fmt.Errorf("templates: parse %s: %w", name, err)
	}
	r.compiled[name] = tmpl
	return tmpl, nil
}

// loadSource prefers a folder-provided template over the built-in library.
func (r *Renderer) loadSource(name string) (string, bool) {
	if r.folder != "" {
		path := filepath.Join(r.folder, name+".tmpl")
		if rel, err := filepath.Rel(r.folder, path); err == nil && !strings.HasPrefix(rel, "..") {
			if raw, err := os.ReadFile(path); err == nil {
				return string(raw), true
			}
		}
	}
	source, ok := builtinTemplates[name]
	return source, ok
}

func templateName(theme, language string) string {
	theme = strings.ToLower(strings.TrimSpace(theme))
	if theme == "" {
		theme = "default"
	}
	if language != "ta" {
		language = "en"
	}
	name := theme + "." + language
	if _, ok := builtinTemplates[name]; !ok {
		// unknown themes map to default before folder lookup so operator
		// overrides stay keyed by the same names as the built-ins
		if _, folderless := builtinTemplates[theme+".en"]; !folderless {
			return "default." + language
		}
	}
	return name
}

// ThemeFor maps an English chapter name onto a template theme.
func ThemeFor(chapterEnglish string) string {
	lowered := strings.ToLower(chapterEnglish)
	switch {
	case strings.Contains(lowered, "forbearance"), strings.Contains(lowered, "patience"), strings.Contains(lowered, "forgive"):
		return "forgiveness"
	case strings.Contains(lowered, "gratitude"):
		return "gratitude"
	case strings.Contains(lowered, "veracity"), strings.Contains(lowered, "truth"), strings.Contains(lowered, "honest"):
		return "honesty"
	case strings.Contains(lowered, "effort"), strings.Contains(lowered, "persever"):
		return "perseverance"
	case strings.Contains(lowered, "compassion"), strings.Contains(lowered, "mercy"):
		return "compassion"
	default:
		return "default"
	}
}

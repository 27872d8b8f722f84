// Package view renders server-side pages from a layout plus one template per page.
package view

import (
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
)

const (
	layoutFile = "layout.html"
	pagesDir   = "pages"
	langKey    = "view.lang"
	wantsJSON  = "view.json"
)

// Translator resolves UI strings.
type Translator interface {
	T(lang, key string, params ...string) string
}

// Page is the data every page template receives.
type Page struct {
	Title     string
	AppName   string
	Lang      string
	Languages interface{}
	User      interface{}
	Path      string
	CSRF      string
	Flash     string
	Error     string
	Success   string
	Errors    map[string]string
	Status    int
	Data      interface{}
}

// FieldError returns the message for field, if any.
func (p Page) FieldError(field string) string {
	return p.Errors[field]
}

// Renderer is a gin HTMLRender holding one parsed template set per page.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses layout.html and every pages/*.html of fsys.
func New(fsys fs.FS, tr Translator) (*Renderer, error) {
	funcs := template.FuncMap{
		"t": func(lang, key string, params ...string) string { return tr.T(lang, key, params...) },
		"date": func(v interface{}) string {
			switch t := v.(type) {
			case time.Time:
				return t.Format("2006-01-02 15:04")
			case *time.Time:
				if t == nil {
					return "-"
				}
				return t.Format("2006-01-02 15:04")
			}
			return ""
		},
		"eq_str": func(a, b interface{}) bool { return fmt.Sprint(a) == fmt.Sprint(b) },
	}

	layout, err := fs.ReadFile(fsys, layoutFile)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	entries, err := fs.ReadDir(fsys, pagesDir)
	if err != nil {
		return nil, fmt.Errorf("read pages: %w", err)
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(entries))}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".html") {
			continue
		}
		body, err := fs.ReadFile(fsys, path.Join(pagesDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read page %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), ".html")
		tmpl, err := template.New(layoutFile).Funcs(funcs).Parse(string(layout))
		if err != nil {
			return nil, fmt.Errorf("parse layout: %w", err)
		}
		if _, err := tmpl.New(name).Parse(string(body)); err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Has reports whether a page template exists.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

// Instance implements render.HTMLRender. The layout pulls in the page through its "content" block.
func (r *Renderer) Instance(name string, data interface{}) render.Render {
	tmpl, ok := r.pages[name]
	if !ok {
		tmpl = template.Must(template.New("missing").Parse(`page not found`))
		return render.HTML{Template: tmpl, Data: data}
	}
	return render.HTML{Template: tmpl, Name: layoutFile, Data: data}
}

// SetLang stores the request language for templates and error pages.
func SetLang(c *gin.Context, lang string) {
	c.Set(langKey, lang)
}

// Lang returns the language stored by SetLang.
func Lang(c *gin.Context) string {
	return c.GetString(langKey)
}

// WantsJSON reports whether the client expects a JSON answer instead of a page.
func WantsJSON(c *gin.Context) bool {
	if forced, ok := c.Get(wantsJSON); ok {
		if b, ok := forced.(bool); ok {
			return b
		}
	}
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return true
	}
	if c.GetHeader("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "application/json") ||
		strings.HasPrefix(c.ContentType(), "application/json")
}

// ForceJSON marks every answer of the route as JSON.
func ForceJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(wantsJSON, true)
		c.Next()
	}
}

// ErrorPage renders the error template for status and aborts the chain.
func ErrorPage(c *gin.Context, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	c.HTML(status, "error", Page{
		Title:  fmt.Sprintf("%d", status),
		Lang:   Lang(c),
		Path:   c.Request.URL.Path,
		Status: status,
		Error:  message,
	})
	c.Abort()
}

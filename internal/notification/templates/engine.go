package templates

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltmpl "html/template"
	"io/fs"
	"log/slog"
	"os"
	"reflect"
	"strings"
	texttmpl "text/template"
)

// ErrUnknownTemplate is returned when no handle is registered under an ID.
var ErrUnknownTemplate = errors.New("templates: unknown template")

// Rendered is one email ready to send.
type Rendered struct {
	Subject   string
	EmailHTML string
	EmailText string
}

// IHandle is the untyped view of a Handle, used for the registry.
type IHandle interface {
	ID() string
	DataType() reflect.Type
}

// Handle ties a template ID to the data type its placeholders expect.
type Handle[T any] struct {
	id string
}

// Expect declares a handle and registers it so NewEngine compiles it.
func Expect[T any](id string) Handle[T] {
	h := Handle[T]{id: id}
	registry = append(registry, h)
	return h
}

func (h Handle[T]) ID() string { return h.id }

func (h Handle[T]) DataType() reflect.Type {
	return reflect.TypeFor[T]()
}

var registry []IHandle

// Handles lists every declared template handle.
func Handles() []IHandle { return append([]IHandle(nil), registry...) }

// Renderer renders a template by ID. The notification dispatcher depends on
// this instead of *Engine.
type Renderer interface {
	RenderAny(ctx context.Context, id string, data any) (Rendered, error)
}

// Engine holds every registered template compiled once at startup.
type Engine struct {
	templates map[string]*compiled
}

type compiled struct {
	handle IHandle
	text   *texttmpl.Template
	html   *htmltmpl.Template
}

// NewEngine compiles all registered templates. Files named <id>.tmpl in dir
// take precedence over the embedded set; an empty dir uses the embedded set
// only. A template that fails to parse or lacks a subject block is an error.
func NewEngine(dir string, log *slog.Logger) (*Engine, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	e := &Engine{templates: make(map[string]*compiled, len(registry))}

	sources := []fs.FS{mustSub(builtin, "files")}
	if dir != "" {
		sources = append([]fs.FS{os.DirFS(dir)}, sources...)
	}

	for _, h := range registry {
		content, overridden, err := readFirst(sources, h.ID()+".tmpl", dir != "")
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", h.ID(), err)
		}
		c, err := compile(h, content)
		if err != nil {
			return nil, err
		}
		e.templates[h.ID()] = c
		if overridden {
			log.Info("email template overridden", "id", h.ID(), "dir", dir)
		}
	}
	return e, nil
}

// Render renders through a typed handle so data mismatches fail to compile.
func Render[T any](ctx context.Context, e *Engine, h Handle[T], data T) (Rendered, error) {
	return e.RenderAny(ctx, h.ID(), data)
}

// RenderAny renders the template registered under id. data must have the
// handle's declared type.
func (e *Engine) RenderAny(_ context.Context, id string, data any) (Rendered, error) {
	c, ok := e.templates[id]
	if !ok {
		return Rendered{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
	}
	if got := reflect.TypeOf(data); got != c.handle.DataType() {
		return Rendered{}, fmt.Errorf("template %s: data is %v, want %v", id, got, c.handle.DataType())
	}

	var (
		out Rendered
		buf bytes.Buffer
	)
	if err := c.text.ExecuteTemplate(&buf, "subject", data); err != nil {
		return Rendered{}, fmt.Errorf("template %s subject: %w", id, err)
	}
	// Header values must be a single line.
	out.Subject = strings.Join(strings.Fields(buf.String()), " ")

	if c.text.Lookup("email_text") != nil {
		buf.Reset()
		if err := c.text.ExecuteTemplate(&buf, "email_text", data); err != nil {
			return Rendered{}, fmt.Errorf("template %s text body: %w", id, err)
		}
		out.EmailText = strings.TrimSpace(buf.String()) + "\n"
	}
	if c.html.Lookup("email_html") != nil {
		buf.Reset()
		if err := c.html.ExecuteTemplate(&buf, "email_html", data); err != nil {
			return Rendered{}, fmt.Errorf("template %s html body: %w", id, err)
		}
		out.EmailHTML = strings.TrimSpace(buf.String())
	}
	return out, nil
}

func compile(h IHandle, content string) (*compiled, error) {
	text, err := texttmpl.New(h.ID()).Option("missingkey=error").Parse(content)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", h.ID(), err)
	}
	html, err := htmltmpl.New(h.ID()).Option("missingkey=error").Parse(content)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", h.ID(), err)
	}
	if text.Lookup("subject") == nil {
		return nil, fmt.Errorf("template %s: missing subject block", h.ID())
	}
	if text.Lookup("email_text") == nil && html.Lookup("email_html") == nil {
		return nil, fmt.Errorf("template %s: needs an email_text or email_html block", h.ID())
	}
	return &compiled{handle: h, text: text, html: html}, nil
}

// readFirst returns name from the first source holding it. overridden reports
// whether that was the leading source and hasOverride is set.
func readFirst(sources []fs.FS, name string, hasOverride bool) (content string, overridden bool, err error) {
	for i, src := range sources {
		b, err := fs.ReadFile(src, name)
		if err == nil {
			return string(b), hasOverride && i == 0, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", false, err
		}
	}
	return "", false, fs.ErrNotExist
}

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

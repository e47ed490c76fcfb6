// Package naming resolves filename and code patterns such as
// "Presenze_{attr:anno_riferimento}_{cliente.anagrafica.codice_fiscale}"
// against a document's static fields, dynamic attributes and related
// entities.
//
// Resolution never fails: a token that cannot be resolved becomes an empty
// string and the rest of the pattern is unaffected.
package naming

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kirillkom/studio-archive/internal/core/domain"
	"github.com/kirillkom/studio-archive/internal/core/ports"
)

const (
	separatorCutset  = "_- "
	defaultExtension = ".bin"
)

// Token bodies may not contain braces.
var tokenPattern = regexp.MustCompile(`\{([^{}]*)\}`)

// Separators and the characters Windows and SMB shares reject in file names.
var pathSeparators = strings.NewReplacer(
	"/", "-", `\`, "-", ":", "-",
	"*", "", "?", "", `"`, "", "<", "", ">", "", "|", "-",
)

type Resolver struct {
	entities ports.EntityResolver
}

func NewResolver(entities ports.EntityResolver) *Resolver {
	return &Resolver{entities: entities}
}

// Input describes one filename resolution.
type Input struct {
	Pattern  string
	Document ports.DocumentView
	// Overrides take precedence over stored attribute values for this call
	// only, keyed by attribute code.
	Overrides        map[string]string
	OriginalFilename string
}

// Filename resolves in.Pattern into a complete file name: separators are
// trimmed, an empty body falls back to the document code, and the original
// file extension is appended.
func (r *Resolver) Filename(ctx context.Context, in Input) string {
	body := r.Code(ctx, in.Pattern, in.Document, in.Overrides)
	return body + Extension(in.OriginalFilename)
}

// Code resolves a pattern without extension, falling back to the document's
// own code when nothing is left after trimming.
func (r *Resolver) Code(ctx context.Context, pattern string, doc ports.DocumentView, overrides map[string]string) string {
	body := strings.Trim(r.Expand(ctx, pattern, doc, overrides), separatorCutset)
	if body != "" {
		return body
	}
	return fallbackCode(doc)
}

// Expand substitutes every {token} in pattern and keeps literal text as is.
func (r *Resolver) Expand(ctx context.Context, pattern string, doc ports.DocumentView, overrides map[string]string) string {
	if doc == nil {
		return tokenPattern.ReplaceAllString(pattern, "")
	}
	view := withOverrides(doc, overrides)
	return tokenPattern.ReplaceAllStringFunc(pattern, func(span string) string {
		body := span[1 : len(span)-1]
		return pathSeparators.Replace(r.token(ctx, view, body))
	})
}

func (r *Resolver) token(ctx context.Context, view ports.DocumentView, body string) (out string) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Debug("token_unresolved", "token", body, "document_id", view.ID(), "panic", fmt.Sprint(rec))
			out = ""
		}
	}()

	value, err := r.dispatch(ctx, view, strings.TrimSpace(body))
	if err != nil {
		slog.Debug("token_unresolved", "token", body, "document_id", view.ID(), "error", err)
		return ""
	}
	return value
}

func (r *Resolver) dispatch(ctx context.Context, view ports.DocumentView, body string) (string, error) {
	switch {
	case body == "":
		return "", nil
	case body == "id":
		return fmt.Sprint(view.ID()), nil
	case body == "tipo.codice":
		return view.TypeCode(), nil
	case body == "data_documento" || strings.HasPrefix(body, "data_documento:"):
		_, format := splitFormat(body)
		t, ok := view.ReferenceDate()
		if !ok {
			return "", nil
		}
		return formatValue(t, format), nil
	case strings.HasPrefix(body, "uattr:"):
		value, err := r.attribute(ctx, view, strings.TrimPrefix(body, "uattr:"))
		if err != nil || value == "" {
			return "", err
		}
		return "_" + value, nil
	case strings.HasPrefix(body, "attr:"):
		return r.attribute(ctx, view, strings.TrimPrefix(body, "attr:"))
	case strings.HasPrefix(body, "attrobj:"):
		return r.attributeObject(ctx, view, strings.TrimPrefix(body, "attrobj:"))
	case strings.HasPrefix(body, "slug:"):
		return r.slug(ctx, view, strings.TrimPrefix(body, "slug:"))
	case strings.HasPrefix(body, "upper:"):
		return strings.ToUpper(strings.TrimPrefix(body, "upper:")), nil
	case strings.HasPrefix(body, "lower:"):
		return strings.ToLower(strings.TrimPrefix(body, "lower:")), nil
	default:
		return r.dotted(ctx, view, body)
	}
}

// attribute resolves "code[.path][:format]".
func (r *Resolver) attribute(ctx context.Context, view ports.DocumentView, spec string) (string, error) {
	ref, format := splitFormat(spec)
	code, path := splitPath(ref)

	v, ok := view.Attribute(code)
	if !ok || !v.HasValue() {
		return "", nil
	}
	if len(path) == 0 {
		return renderAttribute(v, format), nil
	}

	var root any = v.Raw
	if entityRef, ok := v.Ref(); ok {
		root = entityRef
	}
	leaf, err := r.walk(ctx, root, path)
	if err != nil {
		return "", fmt.Errorf("attribute %s: %w", code, err)
	}
	return formatValue(leaf, format), nil
}

// attributeObject resolves "attr_code:entity_kind:entity_subtype:field". The
// attribute's raw value is the entity primary key.
func (r *Resolver) attributeObject(ctx context.Context, view ports.DocumentView, spec string) (string, error) {
	parts := strings.SplitN(spec, ":", 4)
	if len(parts) != 4 {
		return "", fmt.Errorf("malformed attrobj token %q", spec)
	}
	code, kind, subtype, field := parts[0], parts[1], parts[2], parts[3]
	if field == "" {
		return "", fmt.Errorf("attrobj token %q has no field", spec)
	}

	v, ok := view.Attribute(code)
	if !ok || !v.HasValue() {
		return "", nil
	}
	ref := domain.EntityRef{Kind: kind, Subtype: subtype, ID: strings.TrimSpace(v.Raw)}
	leaf, err := r.walk(ctx, ref, strings.Split(field, "."))
	if err != nil {
		return "", fmt.Errorf("attrobj %s: %w", code, err)
	}
	return formatValue(leaf, ""), nil
}

func (r *Resolver) slug(ctx context.Context, view ports.DocumentView, descriptor string) (string, error) {
	var (
		value string
		err   error
	)
	switch {
	case strings.HasPrefix(descriptor, "attrobj:"):
		value, err = r.attributeObject(ctx, view, strings.TrimPrefix(descriptor, "attrobj:"))
	case strings.HasPrefix(descriptor, "uattr:"):
		value, err = r.attribute(ctx, view, strings.TrimPrefix(descriptor, "uattr:"))
	case strings.HasPrefix(descriptor, "attr:"):
		value, err = r.attribute(ctx, view, strings.TrimPrefix(descriptor, "attr:"))
	default:
		value, err = r.dotted(ctx, view, descriptor)
	}
	if err != nil {
		return "", err
	}
	return Slugify(value, slugMaxLength), nil
}

// dotted resolves "root.hop.hop[:format]" starting from a related value of
// the document.
func (r *Resolver) dotted(ctx context.Context, view ports.DocumentView, body string) (string, error) {
	ref, format := splitFormat(body)
	segments := strings.Split(ref, ".")
	root, ok := view.Related(segments[0])
	if !ok {
		return "", fmt.Errorf("unknown field %q", segments[0])
	}
	leaf, err := r.walk(ctx, root, segments[1:])
	if err != nil {
		return "", err
	}
	return formatValue(leaf, format), nil
}

func splitFormat(spec string) (string, string) {
	ref, format, _ := strings.Cut(spec, ":")
	return ref, format
}

func splitPath(ref string) (string, []string) {
	code, rest, ok := strings.Cut(ref, ".")
	if !ok || rest == "" {
		return code, nil
	}
	return code, strings.Split(rest, ".")
}

// Extension returns the extension of the original upload, or a generic
// binary extension when it has none.
func Extension(original string) string {
	ext := filepath.Ext(strings.TrimSpace(original))
	if ext == "" || ext == "." {
		return defaultExtension
	}
	return ext
}

func fallbackCode(doc ports.DocumentView) string {
	if doc == nil {
		return "DOC"
	}
	if code := strings.Trim(pathSeparators.Replace(doc.Code()), separatorCutset); code != "" {
		return code
	}
	return fmt.Sprintf("DOC-%d", doc.ID())
}

type overlay struct {
	ports.DocumentView
	overrides map[string]string
}

func withOverrides(view ports.DocumentView, overrides map[string]string) ports.DocumentView {
	if len(overrides) == 0 {
		return view
	}
	return overlay{DocumentView: view, overrides: overrides}
}

func (o overlay) Attribute(code string) (domain.AttributeValue, bool) {
	v, ok := o.DocumentView.Attribute(code)
	raw, overridden := o.overrides[code]
	if !overridden {
		return v, ok
	}
	if !ok {
		v = domain.AttributeValue{Definition: domain.AttributeDefinition{Code: code, DataType: domain.DataTypeString}}
	}
	v.Raw = raw
	return v, true
}

package domain

import (
	"errors"
	"strings"
)

// Entity is a related object reachable from a document by dotted paths.
type Entity interface {
	Field(name string) (any, bool)
}

// EntityRef is the tagged form of a foreign key: it names the entity kind and
// subtype together with the raw identifier.
type EntityRef struct {
	Kind    string `json:"kind"`
	Subtype string `json:"subtype"`
	ID      string `json:"id"`
}

func (r EntityRef) Key() string {
	return r.Kind + ":" + r.Subtype
}

func (r EntityRef) String() string {
	return r.Key() + "#" + r.ID
}

// ParseEntityRef parses the "kind:subtype#id" form produced by String.
func ParseEntityRef(s string) (EntityRef, error) {
	key, id, ok := strings.Cut(strings.TrimSpace(s), "#")
	if !ok || id == "" {
		return EntityRef{}, WrapError(ErrInvalidInput, "parse entity ref", errors.New("missing #id in "+s))
	}
	kind, subtype, ok := strings.Cut(key, ":")
	if !ok || kind == "" || subtype == "" {
		return EntityRef{}, WrapError(ErrInvalidInput, "parse entity ref", errors.New("missing kind:subtype in "+s))
	}
	return EntityRef{Kind: kind, Subtype: subtype, ID: id}, nil
}

// Record is a generic loaded entity. Field values may be plain values, nested
// Entities, EntityRefs (loaded on traversal) or zero-argument callables.
type Record struct {
	Ref    EntityRef
	Fields map[string]any
}

func (r *Record) Field(name string) (any, bool) {
	if r == nil {
		return nil, false
	}
	if v, ok := r.Fields[name]; ok {
		return v, true
	}
	switch strings.ToLower(name) {
	case "id", "pk":
		if r.Ref.ID != "" {
			return r.Ref.ID, true
		}
	}
	return nil, false
}

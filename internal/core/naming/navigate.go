package naming

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/studio-archive/internal/core/domain"
)

var errMissingHop = errors.New("missing value on path")

// walk follows path from root. Each hop dispatches on the current value:
// entity references are loaded, entities and maps are indexed, and
// zero-argument callables are invoked before indexing.
func (r *Resolver) walk(ctx context.Context, root any, path []string) (any, error) {
	cur := root
	for _, name := range path {
		if name == "" {
			return nil, fmt.Errorf("empty path segment")
		}
		next, err := r.step(ctx, cur, name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		cur = next
	}
	return settle(cur)
}

func (r *Resolver) step(ctx context.Context, cur any, name string) (any, error) {
	cur, err := settle(cur)
	if err != nil {
		return nil, err
	}

	switch v := cur.(type) {
	case nil:
		return nil, errMissingHop
	case domain.EntityRef:
		entity, err := r.load(ctx, v)
		if err != nil {
			return nil, err
		}
		return field(entity, name)
	case *domain.EntityRef:
		if v == nil {
			return nil, errMissingHop
		}
		entity, err := r.load(ctx, *v)
		if err != nil {
			return nil, err
		}
		return field(entity, name)
	case domain.Entity:
		return field(v, name)
	case map[string]any:
		next, ok := v[name]
		if !ok {
			return nil, errMissingHop
		}
		return next, nil
	case map[string]string:
		next, ok := v[name]
		if !ok {
			return nil, errMissingHop
		}
		return next, nil
	default:
		return nil, fmt.Errorf("cannot traverse %T", cur)
	}
}

func (r *Resolver) load(ctx context.Context, ref domain.EntityRef) (domain.Entity, error) {
	if ref.ID == "" {
		return nil, errMissingHop
	}
	if r.entities == nil {
		return nil, domain.WrapError(domain.ErrEntityNotFound, "load entity", fmt.Errorf("no entity resolver for %s", ref))
	}
	entity, err := r.entities.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, domain.WrapError(domain.ErrEntityNotFound, "load entity", fmt.Errorf("%s", ref))
	}
	return entity, nil
}

func field(entity domain.Entity, name string) (any, error) {
	if entity == nil {
		return nil, errMissingHop
	}
	v, ok := entity.Field(name)
	if !ok {
		return nil, errMissingHop
	}
	return v, nil
}

// settle invokes zero-argument callables so that computed properties behave
// like stored fields.
func settle(v any) (any, error) {
	switch fn := v.(type) {
	case func() any:
		return fn(), nil
	case func() string:
		return fn(), nil
	case func() (any, error):
		return fn()
	case func() (string, error):
		return fn()
	default:
		return v, nil
	}
}

// Package templates resolves stored email templates and renders them
// against a context.
package templates

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sungwon/post-office/internal/mail"
)

// Source loads a template by exact name and language. It returns
// mail.ErrTemplateNotFound when no row matches.
type Source interface {
	GetTemplate(ctx context.Context, name, language string) (*mail.Template, error)
}

// Cache holds resolved templates. A miss is reported as (nil, nil).
type Cache interface {
	Get(ctx context.Context, name, language string) (*mail.Template, error)
	Set(ctx context.Context, t *mail.Template) error
	Delete(ctx context.Context, name, language string) error
}

// Resolver looks templates up through an optional cache.
type Resolver struct {
	source Source
	cache  Cache
	log    zerolog.Logger
}

// NewResolver creates a Resolver. cache may be nil.
func NewResolver(source Source, cache Cache, log zerolog.Logger) *Resolver {
	return &Resolver{source: source, cache: cache, log: log}
}

// Resolve returns the template for name in language. A localized lookup
// that misses falls back to the default-language variant.
func (r *Resolver) Resolve(ctx context.Context, name, language string) (*mail.Template, error) {
	t, err := r.lookup(ctx, name, language)
	if err == nil || language == "" || !errors.Is(err, mail.ErrTemplateNotFound) {
		return t, err
	}

	r.log.Debug().
		Str("template", name).
		Str("language", language).
		Msg("localized template not found, using default")
	return r.lookup(ctx, name, "")
}

// Invalidate drops a cached template after it has been changed.
func (r *Resolver) Invalidate(ctx context.Context, name, language string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, name, language); err != nil {
		r.log.Warn().Err(err).Str("template", name).Msg("failed to invalidate cached template")
	}
}

func (r *Resolver) lookup(ctx context.Context, name, language string) (*mail.Template, error) {
	if r.cache != nil {
		t, err := r.cache.Get(ctx, name, language)
		if err != nil {
			r.log.Warn().Err(err).Str("template", name).Msg("template cache read failed")
		} else if t != nil {
			return t, nil
		}
	}

	t, err := r.source.GetTemplate(ctx, name, language)
	if err != nil {
		if errors.Is(err, mail.ErrTemplateNotFound) {
			return nil, fmt.Errorf("%w: %s (language %q)", mail.ErrTemplateNotFound, name, language)
		}
		return nil, fmt.Errorf("load template %s: %w", name, err)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, t); err != nil {
			r.log.Warn().Err(err).Str("template", name).Msg("template cache write failed")
		}
	}
	return t, nil
}

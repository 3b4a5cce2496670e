// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package logging

import (
	"context"
	"log/slog"
)

// ComponentKey is the attribute naming the package a logger belongs to.
const ComponentKey = "component"

// filter drops records below the level of the logger's component.
type filter struct {
	inner     slog.Handler
	spec      *Spec
	component string
}

// NewFilter wraps inner so records are filtered per component according to spec.
func NewFilter(inner slog.Handler, spec *Spec) slog.Handler {
	return &filter{inner: inner, spec: spec}
}

func (h *filter) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.spec.LevelFor(h.component).Slog()
}

func (h *filter) Handle(ctx context.Context, r slog.Record) error {
	if !h.Enabled(ctx, r.Level) {
		return nil
	}
	return h.inner.Handle(ctx, r)
}

func (h *filter) WithAttrs(attrs []slog.Attr) slog.Handler {
	n := &filter{inner: h.inner.WithAttrs(attrs), spec: h.spec, component: h.component}
	for _, a := range attrs {
		if a.Key == ComponentKey {
			n.component = a.Value.String()
		}
	}
	return n
}

func (h *filter) WithGroup(name string) slog.Handler {
	return &filter{inner: h.inner.WithGroup(name), spec: h.spec, component: h.component}
}

// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package logging

import (
	"fmt"
	"sort"
	"strings"
)

// Spec is a base level plus per-component overrides.
type Spec struct {
	Base       Level
	Components map[string]Level
}

// ParseSpec parses "<level>[,<component>=<level>]...". The base level, if given, must come
// first. An empty spec means info for everything.
func ParseSpec(s string) (Spec, error) {
	spec := Spec{Base: LevelInfo, Components: map[string]Level{}}
	for i, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		comp, lvl, found := strings.Cut(part, "=")
		if !found {
			if i != 0 {
				return spec, fmt.Errorf("logging: base level %q must come first", part)
			}
			l, err := ParseLevel(part)
			if err != nil {
				return spec, err
			}
			spec.Base = l
			continue
		}
		comp = strings.TrimSpace(comp)
		if comp == "" {
			return spec, fmt.Errorf("logging: missing component in %q", part)
		}
		l, err := ParseLevel(lvl)
		if err != nil {
			return spec, fmt.Errorf("logging: component %s: %w", comp, err)
		}
		spec.Components[comp] = l
	}
	return spec, nil
}

// LevelFor returns the level that applies to component.
func (s *Spec) LevelFor(component string) Level {
	if l, ok := s.Components[component]; ok {
		return l
	}
	return s.Base
}

// String formats the spec so ParseSpec reads it back, components sorted.
func (s *Spec) String() string {
	parts := []string{s.Base.String()}
	names := make([]string, 0, len(s.Components))
	for c := range s.Components {
		names = append(names, c)
	}
	sort.Strings(names)
	for _, c := range names {
		parts = append(parts, c+"="+s.Components[c].String())
	}
	return strings.Join(parts, ",")
}

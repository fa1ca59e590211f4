// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry describes node types: how each is classified, its
// parameters and the Go source fragment implementing it.
//
// The compiler consults the registry read-only. A registry is usually
// loaded from a YAML node library with LoadLibrary.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Kind classifies a node type.
type Kind int

const (
	// KindPure nodes compute a value with no side effects.
	KindPure Kind = iota

	// KindFunction nodes perform an effect and have one exec output.
	KindFunction

	// KindControlFlow nodes branch to one of several exec outputs.
	KindControlFlow

	// KindEvent nodes are entry points of execution chains.
	KindEvent
)

// String returns the library spelling of the kind.
func (k Kind) String() string {
	switch k {
	case KindPure:
		return "pure"
	case KindFunction:
		return "fn"
	case KindControlFlow:
		return "control_flow"
	case KindEvent:
		return "event"
	default:
		return "unknown"
	}
}

// ParseKind parses a library kind. Descriptive aliases are accepted.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pure":
		return KindPure, nil
	case "fn", "function", "side_effect":
		return KindFunction, nil
	case "control_flow", "branch":
		return KindControlFlow, nil
	case "event", "entry":
		return KindEvent, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Param is one parameter of a node type's source function.
type Param struct {
	Name string `yaml:"name" json:"name" validate:"required"`
	Type string `yaml:"type" json:"type" validate:"required"`
}

// Entry describes one node type.
type Entry struct {
	// Name is the type identifier referenced by graph nodes.
	Name string `yaml:"name" json:"name" validate:"required"`

	Kind     Kind   `yaml:"kind" json:"kind"`
	Category string `yaml:"category,omitempty" json:"category,omitempty"`

	// Params are matched by name against the node's input pins.
	Params []Param `yaml:"params,omitempty" json:"params,omitempty" validate:"dive"`

	// ReturnType is the Go type of the produced value, or "" if the
	// node produces none.
	ReturnType string `yaml:"return_type,omitempty" json:"return_type,omitempty"`

	// ExecOutputs are the outgoing exec pin names. For control-flow
	// nodes each has a matching exec_output("Name") placeholder in Source.
	ExecOutputs []string `yaml:"exec_outputs,omitempty" json:"exec_outputs,omitempty"`

	// Imports are Go import paths the source requires.
	Imports []string `yaml:"imports,omitempty" json:"imports,omitempty"`

	// Source is a Go function declaration implementing the node.
	Source string `yaml:"source" json:"source" validate:"required"`

	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// ProducesValue reports whether the node type declares a return type.
func (e *Entry) ProducesValue() bool {
	return e.ReturnType != ""
}

// IsPure reports whether nodes of this type take part in the pure
// evaluation order: classified pure and producing a value.
func (e *Entry) IsPure() bool {
	return e.Kind == KindPure && e.ProducesValue()
}

// Param returns the parameter with the given name.
func (e *Entry) Param(name string) (Param, bool) {
	for _, p := range e.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Registry resolves node type identifiers to entries.
//
// Implementations must be safe for concurrent reads.
type Registry interface {
	// Lookup returns the entry for a type identifier.
	Lookup(typeID string) (*Entry, bool)

	// All returns every entry sorted by name.
	All() []*Entry

	// ByCategory returns the entries of one category sorted by name.
	ByCategory(category string) []*Entry
}

// MapRegistry is an in-memory Registry.
//
// Thread Safety: Safe for concurrent use.
type MapRegistry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMapRegistry creates a registry holding the given entries. Later
// entries replace earlier ones with the same name.
func NewMapRegistry(entries ...*Entry) *MapRegistry {
	r := &MapRegistry{entries: make(map[string]*Entry, len(entries))}
	for _, e := range entries {
		r.entries[e.Name] = e
	}
	return r
}

// Register adds an entry. It fails if the name is already taken.
func (r *MapRegistry) Register(e *Entry) error {
	if e == nil || e.Name == "" {
		return fmt.Errorf("%w: entry has no name", ErrInvalidEntry)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[e.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, e.Name)
	}
	r.entries[e.Name] = e
	return nil
}

// Lookup implements Registry.
func (r *MapRegistry) Lookup(typeID string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[typeID]
	return e, ok
}

// All implements Registry.
func (r *MapRegistry) All() []*Entry {
	return r.filter(func(*Entry) bool { return true })
}

// ByCategory implements Registry.
func (r *MapRegistry) ByCategory(category string) []*Entry {
	return r.filter(func(e *Entry) bool { return e.Category == category })
}

// Len returns the number of entries.
func (r *MapRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *MapRegistry) filter(keep func(*Entry) bool) []*Entry {
	r.mu.RLock()
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var _ Registry = (*MapRegistry)(nil)

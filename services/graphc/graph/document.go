// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Format selects the encoding of a graph document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatForPath picks a format from a file extension. Unknown extensions
// are treated as YAML, which is a superset of JSON.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Document is the serialized form of a Graph. Nodes are a list so that
// documents keep the author's ordering; ids must be unique.
type Document struct {
	Name        string       `yaml:"name" json:"name" validate:"required"`
	Metadata    Metadata     `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	Nodes       []*Node      `yaml:"nodes" json:"nodes" validate:"dive,required"`
	Connections []Connection `yaml:"connections,omitempty" json:"connections,omitempty" validate:"dive"`
	Comments    []Comment    `yaml:"comments,omitempty" json:"comments,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Graph converts the document into a Graph.
//
// Description:
//
//	Runs field validation (struct tags) and rejects duplicate node ids.
//	Cross-references between connections and nodes are checked by
//	Validate, not here, so partially wired documents can still be
//	inspected.
//
// Outputs:
//
//	*Graph - The graph. Nodes are shared with the document.
//	error - Wraps ErrInvalidDocument or ErrDuplicateNode.
func (d *Document) Graph() (*Graph, error) {
	if err := validate.Struct(d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	g := New(d.Name)
	g.Metadata = d.Metadata
	g.Comments = d.Comments
	for _, n := range d.Nodes {
		if _, exists := g.Nodes[n.ID]; exists {
			return nil, &ValidationError{Location: n.ID, Message: "declared twice", Err: ErrDuplicateNode}
		}
		if n.Properties == nil {
			n.Properties = make(map[string]Value)
		}
		g.AddNode(n)
	}
	g.Connections = append(g.Connections, d.Connections...)
	return g, nil
}

// ToDocument converts a Graph into its serialized form with nodes in
// ascending id order.
func ToDocument(g *Graph) *Document {
	d := &Document{
		Name:        g.Name,
		Metadata:    g.Metadata,
		Connections: append([]Connection(nil), g.Connections...),
		Comments:    g.Comments,
	}
	for _, id := range g.NodeIDs() {
		d.Nodes = append(d.Nodes, g.Nodes[id])
	}
	return d
}

// Parse decodes a graph document.
func Parse(data []byte, format Format) (*Graph, error) {
	var doc Document
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	return doc.Graph()
}

// Load reads and decodes a graph document from disk.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph %s: %w", path, err)
	}
	g, err := Parse(data, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("load graph %s: %w", path, err)
	}
	return g, nil
}

// Encode serializes a graph document.
func Encode(g *Graph, format Format) ([]byte, error) {
	doc := ToDocument(g)
	switch format {
	case FormatYAML:
		return yaml.Marshal(doc)
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// Validate checks that every connection joins existing pins of the
// right kind.
//
// Description:
//
//	For each connection, in declaration order:
//	  - both endpoint nodes must exist (ErrNodeNotFound)
//	  - the source pin must be an output of the source node and the
//	    target pin an input of the target node (ErrPinNotFound)
//	  - execution connections must join exec pins and data connections
//	    must join value pins (ErrInvalidConnection)
//
//	The analysis packages do not call Validate; a dangling data wire
//	still resolves as a connected provenance. Callers that accept
//	untrusted documents should validate first.
//
// Outputs:
//
//	error - nil, or all problems joined with errors.Join. Each is a
//	        *ValidationError.
func Validate(g *Graph) error {
	var errs []error
	for i, c := range g.Connections {
		loc := fmt.Sprintf("connections[%d]", i)

		src, ok := g.Nodes[c.SourceNode]
		if !ok {
			errs = append(errs, &ValidationError{Location: loc, Message: "source " + c.SourceNode, Err: ErrNodeNotFound})
			continue
		}
		dst, ok := g.Nodes[c.TargetNode]
		if !ok {
			errs = append(errs, &ValidationError{Location: loc, Message: "target " + c.TargetNode, Err: ErrNodeNotFound})
			continue
		}

		srcPin, ok := src.Output(c.SourcePin)
		if !ok {
			errs = append(errs, &ValidationError{Location: loc, Message: c.SourceNode + "." + c.SourcePin, Err: ErrPinNotFound})
			continue
		}
		dstPin, ok := dst.Input(c.TargetPin)
		if !ok {
			errs = append(errs, &ValidationError{Location: loc, Message: c.TargetNode + "." + c.TargetPin, Err: ErrPinNotFound})
			continue
		}

		wantExec := c.Kind == Execution
		if srcPin.Type.IsExec() != wantExec || dstPin.Type.IsExec() != wantExec {
			errs = append(errs, &ValidationError{
				Location: loc,
				Message:  fmt.Sprintf("%s wire joins %s and %s pins", c.Kind, srcPin.Type, dstPin.Type),
				Err:      ErrInvalidConnection,
			})
		}
	}
	return errors.Join(errs...)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph holds the blueprint graph model consumed by the compiler.
//
// A graph is a set of nodes keyed by id plus an ordered list of
// connections. Nodes carry named input and output pins and a map of
// literal properties. Connections are either data wires (value flow) or
// execution wires (control flow).
//
// The analysis packages treat a Graph as an immutable snapshot: nothing
// in dataflow, execflow or compiler mutates it.
package graph

import (
	"fmt"
	"sort"
	"strings"
)

// PinKind classifies the value carried by a pin.
type PinKind int

const (
	// PinExec is a control-flow pin.
	PinExec PinKind = iota

	// PinTyped carries a value of an arbitrary named type (see DataType.TypeName).
	PinTyped

	PinNumber
	PinString
	PinBoolean
	PinVector2
	PinVector3
	PinColor
	PinAny
)

var pinKindNames = map[PinKind]string{
	PinExec:    "exec",
	PinNumber:  "number",
	PinString:  "string",
	PinBoolean: "boolean",
	PinVector2: "vector2",
	PinVector3: "vector3",
	PinColor:   "color",
	PinAny:     "any",
}

// DataType is the declared type of a pin.
//
// Builtin kinds are written by name ("number", "exec", ...). Any other
// text is a typed pin whose TypeName is the text itself, e.g. "int64".
type DataType struct {
	Kind     PinKind
	TypeName string
}

// Exec is the control-flow pin type.
var Exec = DataType{Kind: PinExec}

// Typed returns a DataType for a named type.
func Typed(name string) DataType {
	return DataType{Kind: PinTyped, TypeName: name}
}

// Of returns the DataType for a builtin kind.
func Of(kind PinKind) DataType {
	return DataType{Kind: kind}
}

// ParseDataType parses the textual form of a pin type.
func ParseDataType(s string) (DataType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DataType{}, fmt.Errorf("%w: empty pin type", ErrInvalidType)
	}
	if s == "execution" {
		return Exec, nil
	}
	for kind, name := range pinKindNames {
		if name == s {
			return DataType{Kind: kind}, nil
		}
	}
	return Typed(s), nil
}

// String returns the textual form accepted by ParseDataType.
func (t DataType) String() string {
	if t.Kind == PinTyped {
		return t.TypeName
	}
	if name, ok := pinKindNames[t.Kind]; ok {
		return name
	}
	return "unknown"
}

// IsExec reports whether the pin carries control flow.
func (t DataType) IsExec() bool {
	return t.Kind == PinExec
}

// GoType returns the Go type used for values of this pin type.
// Exec pins have no value type and return "".
func (t DataType) GoType() string {
	switch t.Kind {
	case PinTyped:
		return t.TypeName
	case PinNumber:
		return "float64"
	case PinString:
		return "string"
	case PinBoolean:
		return "bool"
	case PinVector2:
		return "[2]float64"
	case PinVector3:
		return "[3]float64"
	case PinColor:
		return "[4]float64"
	case PinAny:
		return "any"
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t DataType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *DataType) UnmarshalText(text []byte) error {
	parsed, err := ParseDataType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Pin is a named input or output slot on a node.
type Pin struct {
	Name string   `yaml:"name" json:"name" validate:"required"`
	Type DataType `yaml:"type" json:"type"`
}

// Position is the editor placement of a node. It has no effect on compilation.
type Position struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// Node is one placed instance of a node type.
type Node struct {
	ID         string           `yaml:"id" json:"id" validate:"required"`
	Type       string           `yaml:"type" json:"type" validate:"required"`
	Position   Position         `yaml:"position,omitempty" json:"position,omitempty"`
	Inputs     []Pin            `yaml:"inputs,omitempty" json:"inputs,omitempty" validate:"dive"`
	Outputs    []Pin            `yaml:"outputs,omitempty" json:"outputs,omitempty" validate:"dive"`
	Properties map[string]Value `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// NewNode creates a node with no pins or properties.
func NewNode(id, nodeType string) *Node {
	return &Node{
		ID:         id,
		Type:       nodeType,
		Properties: make(map[string]Value),
	}
}

// AddInput appends an input pin and returns the node for chaining.
func (n *Node) AddInput(name string, t DataType) *Node {
	n.Inputs = append(n.Inputs, Pin{Name: name, Type: t})
	return n
}

// AddOutput appends an output pin and returns the node for chaining.
func (n *Node) AddOutput(name string, t DataType) *Node {
	n.Outputs = append(n.Outputs, Pin{Name: name, Type: t})
	return n
}

// SetProperty sets a literal property and returns the node for chaining.
func (n *Node) SetProperty(name string, v Value) *Node {
	if n.Properties == nil {
		n.Properties = make(map[string]Value)
	}
	n.Properties[name] = v
	return n
}

// Property returns the property with the given name.
func (n *Node) Property(name string) (Value, bool) {
	v, ok := n.Properties[name]
	return v, ok
}

// Input returns the input pin with the given name.
func (n *Node) Input(name string) (Pin, bool) {
	return findPin(n.Inputs, name)
}

// Output returns the output pin with the given name.
func (n *Node) Output(name string) (Pin, bool) {
	return findPin(n.Outputs, name)
}

func findPin(pins []Pin, name string) (Pin, bool) {
	for _, p := range pins {
		if p.Name == name {
			return p, true
		}
	}
	return Pin{}, false
}

// ConnectionKind distinguishes value wires from control-flow wires.
type ConnectionKind int

const (
	// Data connections carry values between pins.
	Data ConnectionKind = iota

	// Execution connections carry control flow.
	Execution
)

// String returns "data" or "execution".
func (k ConnectionKind) String() string {
	switch k {
	case Data:
		return "data"
	case Execution:
		return "execution"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ConnectionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. "exec" is accepted
// as a short form of "execution".
func (k *ConnectionKind) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "data":
		*k = Data
	case "execution", "exec":
		*k = Execution
	default:
		return fmt.Errorf("%w: connection kind %q", ErrInvalidConnection, text)
	}
	return nil
}

// Connection links a source output pin to a target input pin.
type Connection struct {
	SourceNode string         `yaml:"source_node" json:"source_node" validate:"required"`
	SourcePin  string         `yaml:"source_pin" json:"source_pin" validate:"required"`
	TargetNode string         `yaml:"target_node" json:"target_node" validate:"required"`
	TargetPin  string         `yaml:"target_pin" json:"target_pin" validate:"required"`
	Kind       ConnectionKind `yaml:"kind" json:"kind"`
}

// DataWire returns a data connection.
func DataWire(srcNode, srcPin, dstNode, dstPin string) Connection {
	return Connection{SourceNode: srcNode, SourcePin: srcPin, TargetNode: dstNode, TargetPin: dstPin, Kind: Data}
}

// ExecWire returns an execution connection.
func ExecWire(srcNode, srcPin, dstNode, dstPin string) Connection {
	return Connection{SourceNode: srcNode, SourcePin: srcPin, TargetNode: dstNode, TargetPin: dstPin, Kind: Execution}
}

// Metadata describes the graph document. It has no effect on compilation.
type Metadata struct {
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Version     string `yaml:"version,omitempty" json:"version,omitempty"`
	CreatedAt   string `yaml:"created_at,omitempty" json:"created_at,omitempty"`
	ModifiedAt  string `yaml:"modified_at,omitempty" json:"modified_at,omitempty"`
}

// Comment is an editor annotation.
type Comment struct {
	Text     string     `yaml:"text" json:"text"`
	Position Position   `yaml:"position" json:"position"`
	Size     [2]float64 `yaml:"size" json:"size"`
}

// Graph is a compiled unit: nodes keyed by id and connections in
// declaration order.
//
// Thread Safety: Not safe for concurrent mutation. Concurrent reads are
// safe once construction is complete.
type Graph struct {
	Name        string
	Metadata    Metadata
	Nodes       map[string]*Node
	Connections []Connection
	Comments    []Comment
}

// New creates an empty graph.
func New(name string) *Graph {
	return &Graph{
		Name:     name,
		Metadata: Metadata{Version: "1.0.0"},
		Nodes:    make(map[string]*Node),
	}
}

// AddNode inserts or replaces a node by id.
func (g *Graph) AddNode(n *Node) {
	if g.Nodes == nil {
		g.Nodes = make(map[string]*Node)
	}
	g.Nodes[n.ID] = n
}

// AddConnection appends a connection.
func (g *Graph) AddConnection(c Connection) {
	g.Connections = append(g.Connections, c)
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

// NodeIDs returns all node ids in ascending order.
//
// Every traversal in the compiler goes through NodeIDs so that results
// never depend on map iteration order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CountByKind returns the number of connections of the given kind.
func (g *Graph) CountByKind(kind ConnectionKind) int {
	count := 0
	for _, c := range g.Connections {
		if c.Kind == kind {
			count++
		}
	}
	return count
}

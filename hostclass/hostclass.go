// Copyright © 2024 The ELPS authors

// Package hostclass answers questions about host platform classes: which
// classes and packages exist and which methods and fields they declare.
// Class metadata is read from YAML tables rather than compiled classes.
package hostclass

import (
	"strings"
)

// Scope selects static or instance members.
type Scope uint8

const (
	// Any matches both static and instance members.
	Any Scope = iota
	Static
	Instance
)

func (s Scope) String() string {
	switch s {
	case Static:
		return "static"
	case Instance:
		return "instance"
	default:
		return "any"
	}
}

func (s Scope) matches(static bool) bool {
	switch s {
	case Static:
		return static
	case Instance:
		return !static
	}
	return true
}

// Wildcards accepted by FindMethods and FindFields.
const (
	AnyName  = "*"
	AnyArity = -1
)

// Method is a method or constructor of a class.
type Method struct {
	Name    string   `yaml:"name"`
	Static  bool     `yaml:"static,omitempty"`
	Params  []string `yaml:"params,omitempty"`
	Returns string   `yaml:"returns,omitempty"`
	Varargs bool     `yaml:"varargs,omitempty"`

	// Class is the fully qualified name of the declaring class.
	Class string `yaml:"-"`
}

// Accepts reports whether m can be called with arity arguments.
func (m *Method) Accepts(arity int) bool {
	switch {
	case arity == AnyArity:
		return true
	case m.Varargs:
		return arity >= len(m.Params)-1
	}
	return arity == len(m.Params)
}

// Field is a field of a class.
type Field struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type,omitempty"`
	Static bool   `yaml:"static,omitempty"`

	Class string `yaml:"-"`
}

// Class describes one host class or interface.
type Class struct {
	Name       string    `yaml:"name"`
	Super      string    `yaml:"super,omitempty"`
	Interfaces []string  `yaml:"interfaces,omitempty"`
	Interface  bool      `yaml:"interface,omitempty"`
	Methods    []*Method `yaml:"methods,omitempty"`
	Fields     []*Field  `yaml:"fields,omitempty"`
}

// ShortName returns the class name without its package.
func (c *Class) ShortName() string {
	return c.Name[strings.LastIndexByte(c.Name, '.')+1:]
}

// Package returns the name of the package declaring c.
func (c *Class) Package() string {
	i := strings.LastIndexByte(c.Name, '.')
	if i < 0 {
		return ""
	}
	return c.Name[:i]
}

// Package is a host package and the classes known to be in it.
type Package struct {
	Name    string
	Classes []string
}

// DefaultImports lists the classes visible by short name in every host
// namespace beyond the java.lang and clojure.lang packages.
var DefaultImports = map[string]string{
	"BigDecimal": "java.math.BigDecimal",
	"BigInteger": "java.math.BigInteger",
	"Callable":   "java.util.concurrent.Callable",
}

// DefaultPackages are imported implicitly, in lookup order.
var DefaultPackages = []string{"java.lang", "clojure.lang"}

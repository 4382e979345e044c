// Package registry implements the Safe-Attribute Registry: the single
// source of truth the analyzer and generator consult before accepting or
// emitting an attribute or method access.
package registry

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/duns-scotus/mlpy/internal/logging"
)

// Kind classifies a registered attribute.
type Kind int

const (
	Method Kind = iota
	Property
	Forbidden
)

func (k Kind) String() string {
	switch k {
	case Method:
		return "method"
	case Property:
		return "property"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Entry describes one permitted (or explicitly forbidden) attribute or
// method on a type or registered class.
type Entry struct {
	Name                string
	Kind                Kind
	RequiredCapabilities []string
	Description         string

	// Sanitizing marks a method whose return value is never tainted by an
	// already-tainted receiver or argument, breaking the conservative taint
	// propagation the analyzer otherwise applies to every bridge call.
	Sanitizing bool
}

// key is the (type_or_class_name, attribute_name) composite key entries
// are stored under.
type key struct {
	typeOrClass string
	attr        string
}

// dangerousNames is the default set consulted only when the receiver's
// type is not a registered class.
var dangerousNames = map[string]bool{
	"eval": true, "exec": true, "compile": true, "__import__": true,
	"__class__": true, "__bases__": true, "__subclasses__": true,
	"__globals__": true, "__getattribute__": true, "__setattr__": true,
	"__dict__": true, "__code__": true, "open": true, "system": true,
	"popen": true, "spawn": true, "fork": true, "getattr": true,
	"setattr": true, "delattr": true, "vars": true, "locals": true,
	"globals": true,
}

// reflectionPattern matches dunder-style reflection names, used by the
// analyzer's Phase A pattern scan via IsDangerousName's regex-backed sibling.
var reflectionPattern = regexp.MustCompile(`^__\w+__$`)

// IsDangerousName reports whether name is in the default dangerous set or
// matches the generic reflection-name shape.
func IsDangerousName(name string) bool {
	return dangerousNames[name] || reflectionPattern.MatchString(name)
}

// Registry holds every registered builtin type and bridge class's
// attribute whitelist. It is read-mostly after initialization: writes are
// confined to startup (register_builtin/register_class calls), consistent
// with the single-writer-at-boot, many-readers-after shape the rest of
// this tree uses for its own registries.
type Registry struct {
	mu      sync.RWMutex
	entries map[key]Entry
	// classes records which type_or_class names were registered via
	// RegisterClass, as opposed to RegisterBuiltin — this distinction
	// drives the precedence rule in IsSafe.
	classes map[string]bool
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		entries: make(map[key]Entry),
		classes: make(map[string]bool),
	}
}

// RegisterBuiltin registers the attribute whitelist for a primitive-like
// type (string, array, object). typeTag is e.g. "string", "array", "object".
func (r *Registry) RegisterBuiltin(typeTag string, attrs map[string]Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, entry := range attrs {
		entry.Name = name
		r.entries[key{typeTag, name}] = entry
	}
	logging.RegistryDebug("registered builtin %q with %d attributes", typeTag, len(attrs))
}

// RegisterClass registers the attribute whitelist for a bridge-exported
// class. Once a class name is registered here, attribute resolution on
// that class consults the whitelist *before* the dangerous-name list,
// per the precedence rule in IsSafe.
func (r *Registry) RegisterClass(className string, attrs map[string]Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[className] = true
	for name, entry := range attrs {
		entry.Name = name
		r.entries[key{className, name}] = entry
	}
	logging.RegistryDebug("registered class %q with %d attributes", className, len(attrs))
}

// IsSafe reports whether attr is a permitted access on typeOrClass.
//
// Precedence rule: if typeOrClass was registered via RegisterClass, the
// class whitelist is consulted first — an entry present and not Forbidden
// is safe, an entry present and Forbidden is unsafe, and an *absent* entry
// on a registered class falls through to the dangerous-name list (a
// registered class does not get a free pass on names it never declared).
// If typeOrClass is not a registered class at all, only the dangerous-name
// list applies.
func (r *Registry) IsSafe(typeOrClass, attr string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.classes[typeOrClass] {
		if e, ok := r.entries[key{typeOrClass, attr}]; ok {
			return e.Kind != Forbidden
		}
		return !IsDangerousName(attr)
	}
	if e, ok := r.entries[key{typeOrClass, attr}]; ok {
		return e.Kind != Forbidden
	}
	return !IsDangerousName(attr)
}

// RequiredCapabilities returns the capability types an access to attr on
// typeOrClass requires, or nil if none are required or the entry does not
// exist.
func (r *Registry) RequiredCapabilities(typeOrClass, attr string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key{typeOrClass, attr}]
	if !ok {
		return nil
	}
	return e.RequiredCapabilities
}

// IsSanitizing reports whether attr on typeOrClass is marked as breaking
// taint propagation, per the taint-through-bridge-calls Open Question
// resolution: taint propagates through every bridge call by default
// unless its registry entry opts out with Sanitizing: true.
func (r *Registry) IsSanitizing(typeOrClass, attr string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key{typeOrClass, attr}]
	return ok && e.Sanitizing
}

// Lookup returns the full Entry for (typeOrClass, attr), if registered.
func (r *Registry) Lookup(typeOrClass, attr string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key{typeOrClass, attr}]
	return e, ok
}

// IsRegisteredClass reports whether className was registered via
// RegisterClass (as opposed to RegisterBuiltin).
func (r *Registry) IsRegisteredClass(className string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.classes[className]
}

// MustRegisterClass is a startup-time convenience that panics on a
// duplicate-looking registration mistake (attrs map containing an empty
// name), matching the fail-fast boot discipline the rest of this tree
// uses for static registration tables.
func (r *Registry) MustRegisterClass(className string, attrs map[string]Entry) {
	for name := range attrs {
		if name == "" {
			panic(fmt.Sprintf("registry: empty attribute name registering class %q", className))
		}
	}
	r.RegisterClass(className, attrs)
}

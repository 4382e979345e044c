// Package runtime ("mlrt" in generated code) is the small runtime library
// every transpiled ML program imports. Generated Go source calls into this
// package for every operation a statically typed host language cannot
// express directly: dynamic attribute dispatch through the safe-attribute
// registry, arithmetic across ML's dynamic value shapes, slicing, and
// thrown-value propagation. It is compiled into the host binary, and the
// sandbox's yaegi isolate (C8) exposes its functions to the interpreted
// generated code through the symbol table in internal/sandbox/symbols.go.
//
// An ML Value is represented as a bare Go interface{} holding one of: nil,
// bool, float64, string, []interface{} (array), map[string]interface{}
// (object), *Function (lambda/declared function), or *Bridge (a handle
// into a registered host-side module), per the tagged-sum model in
// spec.md §9's Design Notes.
package runtime

import "fmt"

// Function is an ML callable value: a declared function or lambda.
type Function struct {
	Name string
	Call func(args []interface{}) (interface{}, error)
}

// Bridge is a handle to a bridge-exported object. Class is the logical
// type tag ("class:<Name>") the Safe-Attribute Registry keys its whitelist
// under; Invoke dispatches a method call on the underlying host object.
type Bridge struct {
	Class  string
	Invoke func(method string, args []interface{}) (interface{}, error)
	Get    func(property string) (interface{}, error)
	// Set, if non-nil, makes a property assignable (`target.name = value`).
	// No shipped bridge module currently sets it; it exists so a future
	// one can without a Bridge struct change.
	Set func(property string, value interface{}) error
}

// TypeTag returns the logical type tag the registry and analyzer key
// lookups by: "null", "bool", "number", "string", "array", "object",
// "function", or "class:<Name>" for a Bridge value.
func TypeTag(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case float64:
		return "number"
	case string:
		return "string"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	case *Function:
		return "function"
	case *Bridge:
		return t.Class
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Truthy implements ML's truthiness rule: null and false are falsy, zero
// and the empty string/array/object are falsy, everything else is truthy.
func Truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []interface{}:
		return len(t) != 0
	case map[string]interface{}:
		return len(t) != 0
	default:
		return true
	}
}

// Equal implements ML's structural equality.
func Equal(a, b interface{}) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]interface{}:
		bv, ok := b.(map[string]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, present := bv[k]
			if !present || !Equal(v, other) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// CallValue invokes v as a function, the generic form Call(callee, args)
// lowers to when callee is not a direct method-on-attribute dispatch (that
// case goes through CallMethod instead). v must be a *Function; anything
// else is a runtime type error, since ML has no other callable value.
func CallValue(v interface{}, args []interface{}) (interface{}, error) {
	fn, ok := v.(*Function)
	if !ok {
		return nil, NewRuntimeError("type error: %s is not callable", TypeTag(v))
	}
	return fn.Call(args)
}

// MLException is the runtime value thrown by a `throw` statement or an
// internal runtime error, carrying the thrown ML Value so `except name`
// handlers can rebind it.
type MLException struct {
	Value interface{}
}

func (e *MLException) Error() string {
	return fmt.Sprintf("uncaught exception: %v", e.Value)
}

// Throw wraps v as the error value a generated `throw v` statement
// returns up the Go call stack until a generated try/except catches it.
func Throw(v interface{}) error {
	return &MLException{Value: v}
}

// ReturnSignal is the panic payload a generated `return` statement raises.
// It is not an error: it is recovered only at the boundary of the
// generated function/lambda it belongs to, which sets its own named
// result from Value and swallows the panic. Generated try/except and
// capability-block wrappers recognize and re-panic it unchanged, since
// those constructs must let a return pass through to its real owner
// rather than treat it as a caught exception.
type ReturnSignal struct {
	Value interface{}
}

// ExceptionValue extracts the ML-level value an except handler should bind
// its name to: an MLException unwraps to its carried Value; any other
// error (a RuntimeError from a failed builtin operation) becomes its
// message string, since ML has no separate exception-object model for
// those.
func ExceptionValue(err error) interface{} {
	if exc, ok := err.(*MLException); ok {
		return exc.Value
	}
	return err.Error()
}

// RuntimeError is a typed runtime failure not modeled as an ML-level
// thrown value (e.g. a type error from mixed-type arithmetic under
// --strict-arith, or an out-of-bounds index).
type RuntimeError struct {
	Message string
}

func (e *RuntimeError) Error() string { return e.Message }

func NewRuntimeError(format string, args ...interface{}) error {
	return &RuntimeError{Message: fmt.Sprintf(format, args...)}
}

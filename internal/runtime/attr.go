package runtime

import (
	"sort"
	"strings"

	"github.com/duns-scotus/mlpy/internal/registry"
)

// Attr implements a non-call attribute/property access `target.name`
// (e.g. `s.length`). Unlike CallMethod it never invokes anything; codegen
// only emits this for the Property kind. The registry check here is the
// actual runtime safety gate: codegen's own check operates on the
// compile-time-assumed type, but ML values are dynamically typed, so the
// value's real TypeTag at the moment of access is what the registry must
// judge safe.
func Attr(target interface{}, name string, reg *registry.Registry) (interface{}, error) {
	tag := TypeTag(target)
	if !reg.IsSafe(tag, name) {
		return nil, NewRuntimeError("unsafe attribute access: %s.%s", tag, name)
	}
	switch v := target.(type) {
	case string:
		if name == "length" {
			return float64(len([]rune(v))), nil
		}
	case []interface{}:
		if name == "length" {
			return float64(len(v)), nil
		}
	case *Bridge:
		if v.Get == nil {
			return nil, NewRuntimeError("class %s has no readable property %q", v.Class, name)
		}
		return v.Get(name)
	}
	return nil, NewRuntimeError("unknown property %s.%s", tag, name)
}

// SetAttr implements attribute assignment `target.name = value`, the Attr
// form of an Assign statement's target. Only a Bridge with a non-nil Set
// can accept one today; string/array/object properties this tree exposes
// (length, the builtin method tables) are all read-only.
func SetAttr(target interface{}, name string, value interface{}, reg *registry.Registry) error {
	tag := TypeTag(target)
	if !reg.IsSafe(tag, name) {
		return NewRuntimeError("unsafe attribute assignment: %s.%s", tag, name)
	}
	b, ok := target.(*Bridge)
	if !ok || b.Set == nil {
		return NewRuntimeError("property %s.%s is not assignable", tag, name)
	}
	return b.Set(name, value)
}

// CallMethod implements a method call `target.name(args...)`, dispatching
// to the builtin string/array/map method tables or, for a Bridge value, to
// its registered Invoke. The registry's class-precedence-over-dangerous-
// names rule (spec.md §4.2) is enforced here against the value's actual
// runtime type tag, exactly as Attr does for properties.
func CallMethod(target interface{}, name string, args []interface{}, reg *registry.Registry) (interface{}, error) {
	tag := TypeTag(target)
	if !reg.IsSafe(tag, name) {
		return nil, NewRuntimeError("unsafe method call: %s.%s", tag, name)
	}
	switch v := target.(type) {
	case string:
		return stringMethod(v, name, args)
	case []interface{}:
		return arrayMethod(v, name, args)
	case map[string]interface{}:
		return mapMethod(v, name, args)
	case *Bridge:
		if v.Invoke == nil {
			return nil, NewRuntimeError("class %s has no method %q", v.Class, name)
		}
		return v.Invoke(name, args)
	default:
		return nil, NewRuntimeError("type %s has no method %q", tag, name)
	}
}

func stringMethod(s, name string, args []interface{}) (interface{}, error) {
	switch name {
	case "upper":
		return strings.ToUpper(s), nil
	case "lower":
		return strings.ToLower(s), nil
	case "trim":
		return strings.TrimSpace(s), nil
	case "split":
		sep, err := strArg(args, 0, "split")
		if err != nil {
			return nil, err
		}
		parts := strings.Split(s, sep)
		out := make([]interface{}, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out, nil
	case "replace":
		old, err := strArg(args, 0, "replace")
		if err != nil {
			return nil, err
		}
		nw, err := strArg(args, 1, "replace")
		if err != nil {
			return nil, err
		}
		return strings.ReplaceAll(s, old, nw), nil
	case "contains":
		sub, err := strArg(args, 0, "contains")
		if err != nil {
			return nil, err
		}
		return strings.Contains(s, sub), nil
	case "startsWith":
		sub, err := strArg(args, 0, "startsWith")
		if err != nil {
			return nil, err
		}
		return strings.HasPrefix(s, sub), nil
	case "endsWith":
		sub, err := strArg(args, 0, "endsWith")
		if err != nil {
			return nil, err
		}
		return strings.HasSuffix(s, sub), nil
	case "indexOf":
		sub, err := strArg(args, 0, "indexOf")
		if err != nil {
			return nil, err
		}
		return float64(strings.Index(s, sub)), nil
	case "slice":
		return sliceFromArgs(s, args)
	default:
		return nil, NewRuntimeError("unknown string method %q", name)
	}
}

func arrayMethod(arr []interface{}, name string, args []interface{}) (interface{}, error) {
	switch name {
	case "push":
		return append(arr, args...), nil
	case "pop":
		if len(arr) == 0 {
			return nil, NewRuntimeError("pop from empty array")
		}
		return arr[len(arr)-1], nil
	case "slice":
		return sliceFromArgs(arr, args)
	case "map":
		fn, err := fnArg(args, 0, "map")
		if err != nil {
			return nil, err
		}
		out := make([]interface{}, len(arr))
		for i, v := range arr {
			r, err := fn.Call([]interface{}{v})
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case "filter":
		fn, err := fnArg(args, 0, "filter")
		if err != nil {
			return nil, err
		}
		var out []interface{}
		for _, v := range arr {
			r, err := fn.Call([]interface{}{v})
			if err != nil {
				return nil, err
			}
			if Truthy(r) {
				out = append(out, v)
			}
		}
		if out == nil {
			out = []interface{}{}
		}
		return out, nil
	case "reduce":
		fn, err := fnArg(args, 0, "reduce")
		if err != nil {
			return nil, err
		}
		if len(args) < 2 {
			return nil, NewRuntimeError("reduce requires an initial accumulator")
		}
		acc := args[1]
		for _, v := range arr {
			acc, err = fn.Call([]interface{}{acc, v})
			if err != nil {
				return nil, err
			}
		}
		return acc, nil
	case "join":
		sep, err := strArg(args, 0, "join")
		if err != nil {
			return nil, err
		}
		parts := make([]string, len(arr))
		for i, v := range arr {
			s, ok := v.(string)
			if !ok {
				return nil, NewRuntimeError("join requires an array of strings")
			}
			parts[i] = s
		}
		return strings.Join(parts, sep), nil
	case "sort":
		out := append([]interface{}{}, arr...)
		sort.Slice(out, func(i, j int) bool {
			c, _ := compare(out[i], out[j])
			return c < 0
		})
		return out, nil
	case "reverse":
		out := make([]interface{}, len(arr))
		for i, v := range arr {
			out[len(arr)-1-i] = v
		}
		return out, nil
	default:
		return nil, NewRuntimeError("unknown array method %q", name)
	}
}

func mapMethod(m map[string]interface{}, name string, args []interface{}) (interface{}, error) {
	switch name {
	case "keys":
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]interface{}, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		return out, nil
	case "values":
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]interface{}, len(keys))
		for i, k := range keys {
			out[i] = m[k]
		}
		return out, nil
	case "has":
		k, err := strArg(args, 0, "has")
		if err != nil {
			return nil, err
		}
		_, ok := m[k]
		return ok, nil
	case "get":
		k, err := strArg(args, 0, "get")
		if err != nil {
			return nil, err
		}
		if v, ok := m[k]; ok {
			return v, nil
		}
		if len(args) > 1 {
			return args[1], nil
		}
		return nil, nil
	case "delete":
		k, err := strArg(args, 0, "delete")
		if err != nil {
			return nil, err
		}
		delete(m, k)
		return nil, nil
	default:
		return nil, NewRuntimeError("unknown object method %q", name)
	}
}

func strArg(args []interface{}, i int, method string) (string, error) {
	if i >= len(args) {
		return "", NewRuntimeError("%s: missing argument %d", method, i)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", NewRuntimeError("%s: argument %d must be a string, got %s", method, i, TypeTag(args[i]))
	}
	return s, nil
}

func fnArg(args []interface{}, i int, method string) (*Function, error) {
	if i >= len(args) {
		return nil, NewRuntimeError("%s: missing callback argument", method)
	}
	fn, ok := args[i].(*Function)
	if !ok {
		return nil, NewRuntimeError("%s: argument %d must be a function, got %s", method, i, TypeTag(args[i]))
	}
	return fn, nil
}

// sliceFromArgs adapts the variadic (start, stop, step) argument shape a
// `.slice(...)` method call carries into the Slice function's *int triple.
func sliceFromArgs(target interface{}, args []interface{}) (interface{}, error) {
	idx := make([]*int, 3)
	for i := 0; i < len(args) && i < 3; i++ {
		if args[i] == nil {
			continue
		}
		n, ok := args[i].(float64)
		if !ok {
			return nil, NewRuntimeError("slice: argument %d must be a number or null", i)
		}
		v := int(n)
		idx[i] = &v
	}
	return Slice(target, idx[0], idx[1], idx[2])
}

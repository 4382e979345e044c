package runtime

// Iterable normalizes a `for v in iter` target into a plain slice of ML
// values: an array iterates its elements, a string iterates its
// characters (each a length-1 string), and an object iterates its
// values (ML objects have no ordering guarantee, so this keeps no
// guarantee either). Anything else is a runtime type error.
func Iterable(v interface{}) ([]interface{}, error) {
	switch t := v.(type) {
	case []interface{}:
		return t, nil
	case string:
		runes := []rune(t)
		out := make([]interface{}, len(runes))
		for i, r := range runes {
			out[i] = string(r)
		}
		return out, nil
	case map[string]interface{}:
		out := make([]interface{}, 0, len(t))
		for _, val := range t {
			out = append(out, val)
		}
		return out, nil
	default:
		return nil, NewRuntimeError("type error: cannot iterate %s", TypeTag(v))
	}
}

package runtime

// sliceIndices implements CPython's PySlice_GetIndicesEx normalization:
// given a sequence length and optional start/stop/step, it returns the
// concrete (start, stop, step) a caller can loop `for i := start; ... ;
// i += step` over to produce exactly the elements spec.md §4.5's Slice
// mapping rule (and §8's six conformance scenarios) require, including
// negative indices, open ends, and a negative step's full-reverse
// behavior.
func sliceIndices(length int, start, stop, step *int) (int, int, int) {
	st := 1
	if step != nil {
		st = *step
	}

	var lower, upper int
	if st > 0 {
		lower, upper = 0, length
	} else {
		lower, upper = -1, length-1
	}

	var startIdx int
	switch {
	case start == nil:
		if st > 0 {
			startIdx = lower
		} else {
			startIdx = upper
		}
	default:
		startIdx = *start
		if startIdx < 0 {
			startIdx += length
			if startIdx < lower {
				startIdx = lower
			}
		} else if startIdx > upper {
			startIdx = upper
		}
	}

	var stopIdx int
	switch {
	case stop == nil:
		if st > 0 {
			stopIdx = upper
		} else {
			stopIdx = lower
		}
	default:
		stopIdx = *stop
		if stopIdx < 0 {
			stopIdx += length
			if stopIdx < lower {
				stopIdx = lower
			}
		} else if stopIdx > upper {
			stopIdx = upper
		}
	}

	return startIdx, stopIdx, st
}

// Slice implements `target[start:stop:step]` on an array or string value,
// preserving the reference language's exact sequence-slicing semantics
// (see sliceIndices). step == 0 is a runtime error, matching the
// reference's own rejection of a zero step.
func Slice(target interface{}, start, stop, step *int) (interface{}, error) {
	if step != nil && *step == 0 {
		return nil, NewRuntimeError("slice step cannot be zero")
	}
	switch v := target.(type) {
	case []interface{}:
		startIdx, stopIdx, st := sliceIndices(len(v), start, stop, step)
		var out []interface{}
		if st > 0 {
			for i := startIdx; i < stopIdx; i += st {
				out = append(out, v[i])
			}
		} else {
			for i := startIdx; i > stopIdx; i += st {
				out = append(out, v[i])
			}
		}
		if out == nil {
			out = []interface{}{}
		}
		return out, nil
	case string:
		runes := []rune(v)
		startIdx, stopIdx, st := sliceIndices(len(runes), start, stop, step)
		var out []rune
		if st > 0 {
			for i := startIdx; i < stopIdx; i += st {
				out = append(out, runes[i])
			}
		} else {
			for i := startIdx; i > stopIdx; i += st {
				out = append(out, runes[i])
			}
		}
		return string(out), nil
	default:
		return nil, NewRuntimeError("type error: cannot slice %s", TypeTag(target))
	}
}

// resolveIndex normalizes a single (possibly negative) index against
// length, returning an error if it is out of bounds after normalization.
func resolveIndex(idx float64, length int) (int, error) {
	i := int(idx)
	if i < 0 {
		i += length
	}
	if i < 0 || i >= length {
		return 0, NewRuntimeError("index out of range: %d (length %d)", int(idx), length)
	}
	return i, nil
}

// Index implements `target[key]` for arrays (numeric index, negative
// indices count from the end), strings (numeric index, returns a
// single-character string), and objects (string key lookup).
func Index(target, key interface{}) (interface{}, error) {
	switch v := target.(type) {
	case []interface{}:
		idx, ok := key.(float64)
		if !ok {
			return nil, NewRuntimeError("type error: array index must be a number, got %s", TypeTag(key))
		}
		i, err := resolveIndex(idx, len(v))
		if err != nil {
			return nil, err
		}
		return v[i], nil
	case string:
		idx, ok := key.(float64)
		if !ok {
			return nil, NewRuntimeError("type error: string index must be a number, got %s", TypeTag(key))
		}
		runes := []rune(v)
		i, err := resolveIndex(idx, len(runes))
		if err != nil {
			return nil, err
		}
		return string(runes[i]), nil
	case map[string]interface{}:
		k, ok := key.(string)
		if !ok {
			return nil, NewRuntimeError("type error: object key must be a string, got %s", TypeTag(key))
		}
		val, present := v[k]
		if !present {
			return nil, NewRuntimeError("key not found: %q", k)
		}
		return val, nil
	default:
		return nil, NewRuntimeError("type error: cannot index %s", TypeTag(target))
	}
}

// SetIndex implements `target[key] = value` in place for arrays and
// objects. Strings are immutable; indexed assignment into one is a
// runtime error.
func SetIndex(target, key, value interface{}) error {
	switch v := target.(type) {
	case []interface{}:
		idx, ok := key.(float64)
		if !ok {
			return NewRuntimeError("type error: array index must be a number, got %s", TypeTag(key))
		}
		i, err := resolveIndex(idx, len(v))
		if err != nil {
			return err
		}
		v[i] = value
		return nil
	case map[string]interface{}:
		k, ok := key.(string)
		if !ok {
			return NewRuntimeError("type error: object key must be a string, got %s", TypeTag(key))
		}
		v[k] = value
		return nil
	case string:
		return NewRuntimeError("strings are immutable")
	default:
		return NewRuntimeError("type error: cannot assign into %s", TypeTag(target))
	}
}

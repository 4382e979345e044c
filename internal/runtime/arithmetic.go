package runtime

import "strconv"

// StrictArith controls the Open-Question-2 resolution for `number + string`
// mixed arithmetic (SPEC_FULL.md: "Resolved Open Question (2)"). Generated
// code reads this from the options threaded into its entry point rather
// than a package global in the general case; the package-level default
// below only matters for runtime helpers invoked without an explicit
// options value (direct unit tests of this package).
var StrictArith = false

// numberToString renders a float64 the way ML source would print it:
// integral values with no trailing ".0", everything else via strconv's
// shortest round-trip representation.
func numberToString(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Add implements `+`: number+number is arithmetic sum, string+string (or
// string with either operand a string) is concatenation. A number mixed
// with a string either coerces the number to its string form and
// concatenates (the reference behavior) or raises a RuntimeError under
// strictArith, per the Design Notes Open Question 2 resolution.
func Add(a, b interface{}, strictArith bool) (interface{}, error) {
	an, aIsNum := a.(float64)
	bn, bIsNum := b.(float64)
	if aIsNum && bIsNum {
		return an + bn, nil
	}
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return as + bs, nil
	}
	if aIsStr || bIsStr {
		if strictArith {
			return nil, NewRuntimeError("type error: cannot add %s and %s", TypeTag(a), TypeTag(b))
		}
		left := as
		if !aIsStr {
			left = numberToString(an)
		}
		right := bs
		if !bIsStr {
			right = numberToString(bn)
		}
		return left + right, nil
	}
	return nil, NewRuntimeError("type error: cannot add %s and %s", TypeTag(a), TypeTag(b))
}

func asNumbers(a, b interface{}, op string) (float64, float64, error) {
	an, aok := a.(float64)
	bn, bok := b.(float64)
	if !aok || !bok {
		return 0, 0, NewRuntimeError("type error: %s requires two numbers, got %s and %s", op, TypeTag(a), TypeTag(b))
	}
	return an, bn, nil
}

func Sub(a, b interface{}) (interface{}, error) {
	an, bn, err := asNumbers(a, b, "-")
	if err != nil {
		return nil, err
	}
	return an - bn, nil
}

func Mul(a, b interface{}) (interface{}, error) {
	an, bn, err := asNumbers(a, b, "*")
	if err != nil {
		return nil, err
	}
	return an * bn, nil
}

func Div(a, b interface{}) (interface{}, error) {
	an, bn, err := asNumbers(a, b, "/")
	if err != nil {
		return nil, err
	}
	if bn == 0 {
		return nil, NewRuntimeError("division by zero")
	}
	return an / bn, nil
}

func Mod(a, b interface{}) (interface{}, error) {
	an, bn, err := asNumbers(a, b, "%")
	if err != nil {
		return nil, err
	}
	if bn == 0 {
		return nil, NewRuntimeError("modulo by zero")
	}
	return float64(int64(an) % int64(bn)), nil
}

func Pow(a, b interface{}) (interface{}, error) {
	an, bn, err := asNumbers(a, b, "**")
	if err != nil {
		return nil, err
	}
	result := 1.0
	neg := bn < 0
	n := int(bn)
	if neg {
		n = -n
	}
	for i := 0; i < n; i++ {
		result *= an
	}
	if neg {
		if result == 0 {
			return nil, NewRuntimeError("division by zero")
		}
		return 1 / result, nil
	}
	return result, nil
}

func Neg(a interface{}) (interface{}, error) {
	an, ok := a.(float64)
	if !ok {
		return nil, NewRuntimeError("type error: unary - requires a number, got %s", TypeTag(a))
	}
	return -an, nil
}

func Not(a interface{}) interface{} {
	return !Truthy(a)
}

// compare returns -1/0/1 for a<b, a==b, a>b across two numbers or two
// strings; comparing any other combination is a type error.
func compare(a, b interface{}) (int, error) {
	if an, ok := a.(float64); ok {
		bn, ok := b.(float64)
		if !ok {
			return 0, NewRuntimeError("type error: cannot compare number and %s", TypeTag(b))
		}
		switch {
		case an < bn:
			return -1, nil
		case an > bn:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, NewRuntimeError("type error: cannot compare string and %s", TypeTag(b))
		}
		switch {
		case as < bs:
			return -1, nil
		case as > bs:
			return 1, nil
		default:
			return 0, nil
		}
	}
	return 0, NewRuntimeError("type error: cannot compare %s and %s", TypeTag(a), TypeTag(b))
}

func Lt(a, b interface{}) (interface{}, error) {
	c, err := compare(a, b)
	return c < 0, err
}

func Gt(a, b interface{}) (interface{}, error) {
	c, err := compare(a, b)
	return c > 0, err
}

func Lte(a, b interface{}) (interface{}, error) {
	c, err := compare(a, b)
	return c <= 0, err
}

func Gte(a, b interface{}) (interface{}, error) {
	c, err := compare(a, b)
	return c >= 0, err
}

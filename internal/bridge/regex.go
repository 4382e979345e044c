package bridge

import (
	"regexp"

	"github.com/duns-scotus/mlpy/internal/registry"
	"github.com/duns-scotus/mlpy/internal/runtime"
)

// RegexModule is the bridge spec.md §4.2 uses as its own example of the
// registered-class-whitelist-overrides-dangerous-names precedence rule:
// "compile" is in the global dangerous-name list, but a value whose type
// is the registered class "class:Regex" is allowed to call it because the
// class whitelist is consulted first.
type RegexModule struct{}

func (RegexModule) ClassName() string { return "class:Regex" }

func (RegexModule) Attrs() map[string]registry.Entry {
	return map[string]registry.Entry{
		"compile": {Kind: registry.Method, Description: "compile a pattern into a reusable matcher"},
	}
}

func (m RegexModule) Instance(deps Deps) *runtime.Bridge {
	return &runtime.Bridge{
		Class: m.ClassName(),
		Invoke: func(method string, args []interface{}) (interface{}, error) {
			switch method {
			case "compile":
				pattern, ok := singleStringArg(args)
				if !ok {
					return nil, runtime.NewRuntimeError("regex.compile: expected a single string pattern")
				}
				re, err := regexp.Compile(pattern)
				if err != nil {
					return nil, runtime.NewRuntimeError("regex.compile: %v", err)
				}
				return newCompiledRegex(re), nil
			default:
				return nil, runtime.NewRuntimeError("class %s has no method %q", m.ClassName(), method)
			}
		},
	}
}

// compiledRegexClass is the auxiliary class RegexModule.compile's return
// value is registered under, per C7's "auxiliary classes returned from
// factory methods must be separately registered."
const compiledRegexClass = "class:CompiledRegex"

// CompiledRegexAttrs is exported so the sandbox executor's startup
// registration (which must register every auxiliary class up front, since
// the registry has no notion of lazy/implicit registration) can install
// this alongside RegexModule itself.
func CompiledRegexAttrs() map[string]registry.Entry {
	return map[string]registry.Entry{
		// Sanitizing: matching a (possibly tainted) string against a fixed
		// compiled pattern and returning a bool introduces no new
		// untrusted data, so this opts out of the conservative
		// taint-through-every-bridge-call default (Open Question 1).
		"match": {Kind: registry.Method, Sanitizing: true, Description: "test whether the pattern matches"},
		"find":  {Kind: registry.Method, Description: "return the first match, or null"},
	}
}

func newCompiledRegex(re *regexp.Regexp) *runtime.Bridge {
	return &runtime.Bridge{
		Class: compiledRegexClass,
		Invoke: func(method string, args []interface{}) (interface{}, error) {
			s, ok := singleStringArg(args)
			if !ok {
				return nil, runtime.NewRuntimeError("%s.%s: expected a single string argument", compiledRegexClass, method)
			}
			switch method {
			case "match":
				return re.MatchString(s), nil
			case "find":
				m := re.FindString(s)
				if m == "" && !re.MatchString(s) {
					return nil, nil
				}
				return m, nil
			default:
				return nil, runtime.NewRuntimeError("class %s has no method %q", compiledRegexClass, method)
			}
		},
	}
}

func singleStringArg(args []interface{}) (string, bool) {
	if len(args) != 1 {
		return "", false
	}
	s, ok := args[0].(string)
	return s, ok
}

package bridge

import (
	"os"

	"github.com/duns-scotus/mlpy/internal/capability"
	"github.com/duns-scotus/mlpy/internal/registry"
	"github.com/duns-scotus/mlpy/internal/runtime"
)

// FSModule is the bridge that demonstrates C7's capability-check
// obligation: its "open" method performs a privileged operation, so it
// calls capability.Requires before touching the filesystem, and the file
// handle it returns gates "read"/"write" the same way. "open" is also a
// second instance of the class-whitelist-overrides-dangerous-names
// precedence rule — global "open" is forbidden on an unregistered type,
// permitted here because the receiver's type is the registered class
// "class:FS".
type FSModule struct{}

func (FSModule) ClassName() string { return "class:FS" }

func (FSModule) Attrs() map[string]registry.Entry {
	return map[string]registry.Entry{
		"open": {
			Kind:                 registry.Method,
			RequiredCapabilities: []string{"read", "write"},
			Description:          "open a file handle under a capability-granted path",
		},
	}
}

func (m FSModule) Instance(deps Deps) *runtime.Bridge {
	return &runtime.Bridge{
		Class: m.ClassName(),
		Invoke: func(method string, args []interface{}) (interface{}, error) {
			if method != "open" {
				return nil, runtime.NewRuntimeError("class %s has no method %q", m.ClassName(), method)
			}
			path, mode, ok := openArgs(args)
			if !ok {
				return nil, runtime.NewRuntimeError("fs.open: expected (path, mode) string arguments")
			}
			op := "read"
			flag := os.O_RDONLY
			if mode == "w" {
				op, flag = "write", os.O_WRONLY|os.O_CREATE|os.O_TRUNC
			}
			if err := capability.Requires(deps.Manager, deps.Thread, "file", op,
				func(a ...interface{}) string { return a[0].(string) }, path); err != nil {
				return nil, err
			}
			f, err := os.OpenFile(path, flag, 0o644)
			if err != nil {
				return nil, runtime.NewRuntimeError("fs.open: %v", err)
			}
			return newFileHandle(f, deps, path), nil
		},
	}
}

const fileHandleClass = "class:FileHandle"

// FileHandleAttrs mirrors CompiledRegexAttrs: the auxiliary class fs.open
// returns must be registered at startup alongside FSModule itself.
func FileHandleAttrs() map[string]registry.Entry {
	return map[string]registry.Entry{
		"read":  {Kind: registry.Method, RequiredCapabilities: []string{"read"}, Description: "read the file's full contents"},
		"write": {Kind: registry.Method, RequiredCapabilities: []string{"write"}, Description: "overwrite the file's contents"},
		"close": {Kind: registry.Method, Description: "release the underlying file descriptor"},
	}
}

func newFileHandle(f *os.File, deps Deps, path string) *runtime.Bridge {
	return &runtime.Bridge{
		Class: fileHandleClass,
		Invoke: func(method string, args []interface{}) (interface{}, error) {
			switch method {
			case "read":
				if err := capability.Requires(deps.Manager, deps.Thread, "file", "read",
					func(a ...interface{}) string { return path }); err != nil {
					return nil, err
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return nil, runtime.NewRuntimeError("%s.read: %v", fileHandleClass, err)
				}
				return string(data), nil
			case "write":
				content, ok := singleStringArg(args)
				if !ok {
					return nil, runtime.NewRuntimeError("%s.write: expected a single string argument", fileHandleClass)
				}
				if err := capability.Requires(deps.Manager, deps.Thread, "file", "write",
					func(a ...interface{}) string { return path }); err != nil {
					return nil, err
				}
				if _, err := f.WriteString(content); err != nil {
					return nil, runtime.NewRuntimeError("%s.write: %v", fileHandleClass, err)
				}
				return nil, nil
			case "close":
				return nil, f.Close()
			default:
				return nil, runtime.NewRuntimeError("class %s has no method %q", fileHandleClass, method)
			}
		},
	}
}

func openArgs(args []interface{}) (path, mode string, ok bool) {
	if len(args) != 2 {
		return "", "", false
	}
	path, okPath := args[0].(string)
	mode, okMode := args[1].(string)
	return path, mode, okPath && okMode
}

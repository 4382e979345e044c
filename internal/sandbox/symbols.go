package sandbox

import (
	"reflect"

	"github.com/traefik/yaegi/interp"

	"github.com/duns-scotus/mlpy/internal/bridge"
	"github.com/duns-scotus/mlpy/internal/capability"
	"github.com/duns-scotus/mlpy/internal/registry"
	mlrt "github.com/duns-scotus/mlpy/internal/runtime"
)

// generatedSymbols is this tree's own interp.Exports table, handwritten
// in the shape `yaegi extract` normally produces for a Go stdlib package
// (see github.com/traefik/yaegi/stdlib for the pattern this follows).
// Generated code's only possible import surface is internal/runtime
// (aliased mlrt), internal/capability, internal/registry, and
// internal/bridge — codegen.writePreamble never emits anything else —
// so this table only needs to cover those four packages' exported
// identifiers that a generated Run function can actually reference.
var generatedSymbols = interp.Exports{
	"github.com/duns-scotus/mlpy/internal/runtime/runtime": {
		"Function":        reflect.ValueOf((*mlrt.Function)(nil)),
		"Bridge":          reflect.ValueOf((*mlrt.Bridge)(nil)),
		"ReturnSignal":    reflect.ValueOf((*mlrt.ReturnSignal)(nil)),
		"MLException":     reflect.ValueOf((*mlrt.MLException)(nil)),
		"RuntimeError":    reflect.ValueOf((*mlrt.RuntimeError)(nil)),
		"TypeTag":         reflect.ValueOf(mlrt.TypeTag),
		"Truthy":          reflect.ValueOf(mlrt.Truthy),
		"Equal":           reflect.ValueOf(mlrt.Equal),
		"CallValue":       reflect.ValueOf(mlrt.CallValue),
		"Throw":           reflect.ValueOf(mlrt.Throw),
		"ExceptionValue":  reflect.ValueOf(mlrt.ExceptionValue),
		"NewRuntimeError": reflect.ValueOf(mlrt.NewRuntimeError),
		"Add":             reflect.ValueOf(mlrt.Add),
		"Sub":             reflect.ValueOf(mlrt.Sub),
		"Mul":             reflect.ValueOf(mlrt.Mul),
		"Div":             reflect.ValueOf(mlrt.Div),
		"Mod":             reflect.ValueOf(mlrt.Mod),
		"Pow":             reflect.ValueOf(mlrt.Pow),
		"Neg":             reflect.ValueOf(mlrt.Neg),
		"Not":             reflect.ValueOf(mlrt.Not),
		"Lt":              reflect.ValueOf(mlrt.Lt),
		"Gt":              reflect.ValueOf(mlrt.Gt),
		"Lte":             reflect.ValueOf(mlrt.Lte),
		"Gte":             reflect.ValueOf(mlrt.Gte),
		"Index":           reflect.ValueOf(mlrt.Index),
		"SetIndex":        reflect.ValueOf(mlrt.SetIndex),
		"Slice":           reflect.ValueOf(mlrt.Slice),
		"Attr":            reflect.ValueOf(mlrt.Attr),
		"SetAttr":         reflect.ValueOf(mlrt.SetAttr),
		"CallMethod":      reflect.ValueOf(mlrt.CallMethod),
		"Iterable":        reflect.ValueOf(mlrt.Iterable),
	},
	"github.com/duns-scotus/mlpy/internal/capability/capability": {
		"Manager":    reflect.ValueOf((*capability.Manager)(nil)),
		"Thread":     reflect.ValueOf((*capability.Thread)(nil)),
		"Token":      reflect.ValueOf((*capability.Token)(nil)),
		"Guard":      reflect.ValueOf((*capability.Guard)(nil)),
		"Error":      reflect.ValueOf((*capability.Error)(nil)),
		"NewThread":  reflect.ValueOf(capability.NewThread),
		"NewManager": reflect.ValueOf(capability.NewManager),
	},
	"github.com/duns-scotus/mlpy/internal/registry/registry": {
		"Registry": reflect.ValueOf((*registry.Registry)(nil)),
		"Entry":    reflect.ValueOf((*registry.Entry)(nil)),
		"New":      reflect.ValueOf(registry.New),
	},
	"github.com/duns-scotus/mlpy/internal/bridge/bridge": {
		"Deps":        reflect.ValueOf((*bridge.Deps)(nil)),
		"Module":      reflect.ValueOf((*bridge.Module)(nil)),
		"RegexModule": reflect.ValueOf((*bridge.RegexModule)(nil)),
		"FSModule":    reflect.ValueOf((*bridge.FSModule)(nil)),
		"Register":    reflect.ValueOf(bridge.Register),
		"RegisterAll": reflect.ValueOf(bridge.RegisterAll),
	},
}

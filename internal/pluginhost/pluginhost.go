// Package pluginhost defines the contract a metadata repo's scripted
// plugins (plugins/<plugin-id>/mod.star) are evaluated through.
//
// The example pack carries no embeddable scripting-language runtime
// (no Starlark or Tengo dependency anywhere in the corpus), and spec.md
// §9 explicitly treats the evaluator as a replaceable implementation
// detail. This package therefore only fixes the Value/Evaluator
// contract; a concrete Evaluator is wired in by whatever component
// needs one (see DESIGN.md).
package pluginhost

import "fmt"

// Kind discriminates the tagged union a plugin value can hold.
type Kind int

const (
	KindNone Kind = iota
	KindInt
	KindStr
	KindStrList
	KindFunc
)

// Value is a tagged union covering everything a plugin function can
// take or return: scalars, string lists, and callables.
type Value struct {
	Kind    Kind
	Int     int64
	Str     string
	StrList []string
	Func    func(args ...Value) (Value, error)
}

// None is the canonical absent value.
var None = Value{Kind: KindNone}

func Int(v int64) Value       { return Value{Kind: KindInt, Int: v} }
func Str(v string) Value      { return Value{Kind: KindStr, Str: v} }
func StrList(v []string) Value { return Value{Kind: KindStrList, StrList: v} }

// Evaluator runs one plugin module and exposes its top-level bindings.
type Evaluator interface {
	// Value returns a plugin module's top-level binding by name.
	Value(pluginID, key string) (Value, error)
	// Call invokes a plugin-exported function by name with the given args.
	Call(pluginID, fn string, args ...Value) (Value, error)
}

// AsStrList type-asserts a Value as a string list, erroring otherwise.
func (v Value) AsStrList() ([]string, error) {
	if v.Kind != KindStrList {
		return nil, fmt.Errorf("plugin value is not a string list (kind=%d)", v.Kind)
	}
	return v.StrList, nil
}

// AsStr type-asserts a Value as a string, erroring otherwise.
func (v Value) AsStr() (string, error) {
	if v.Kind != KindStr {
		return "", fmt.Errorf("plugin value is not a string (kind=%d)", v.Kind)
	}
	return v.Str, nil
}

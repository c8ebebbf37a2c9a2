package component

import (
	"fmt"

	"github.com/weftworks/weft/errors"
)

// ParamType names the value type a parameter accepts.
type ParamType string

const (
	// TypeString accepts string values.
	TypeString ParamType = "string"
	// TypeInt accepts integer values (JSON numbers with integral value
	// are accepted too, matching how configs deserialize).
	TypeInt ParamType = "int"
	// TypeFloat accepts numeric values.
	TypeFloat ParamType = "float"
	// TypeBool accepts boolean values.
	TypeBool ParamType = "bool"
	// TypeHandle accepts a reference to another component, typically a
	// Resource resolved during Initialize.
	TypeHandle ParamType = "handle"
	// TypeAny accepts any value.
	TypeAny ParamType = "any"
)

// ParamDecl declares one parameter in a component's schema: its name, type,
// an optional default, and whether a value is required at Initialize.
type ParamDecl struct {
	Name        string
	Type        ParamType
	Description string
	Default     any
	Required    bool
}

// param tracks a declaration together with its bound value. The set flag is
// the "unset" sentinel: a parameter with a default is usable unset, a
// required one is not.
type param struct {
	decl  ParamDecl
	value any
	set   bool
}

// Spec is a component's parameter schema, populated by Setup before any
// value is bound.
type Spec struct {
	params map[string]*param
	order  []string
}

// NewSpec creates an empty parameter schema.
func NewSpec() *Spec {
	return &Spec{params: make(map[string]*param)}
}

// Param declares a parameter. Declaring the same name twice is a
// configuration error.
func (s *Spec) Param(decl ParamDecl) error {
	if decl.Name == "" {
		return errors.WrapConfig(errors.New("empty parameter name"),
			"Spec", "Param", "declaration")
	}
	if decl.Type == "" {
		decl.Type = TypeAny
	}
	if _, exists := s.params[decl.Name]; exists {
		return errors.WrapConfig(
			fmt.Errorf("%w: %q", errors.ErrDuplicateParameter, decl.Name),
			"Spec", "Param", "declaration")
	}
	if decl.Default != nil && !typeAccepts(decl.Type, decl.Default) {
		return errors.WrapConfig(
			fmt.Errorf("default for %q is not a %s", decl.Name, decl.Type),
			"Spec", "Param", "declaration")
	}
	s.params[decl.Name] = &param{decl: decl}
	s.order = append(s.order, decl.Name)
	return nil
}

// Names returns the declared parameter names in declaration order.
func (s *Spec) Names() []string {
	return append([]string(nil), s.order...)
}

// bind assigns concrete values to declared parameters. Unknown keys, type
// mismatches, and unset required parameters are configuration errors that
// name the offending key.
func (s *Spec) bind(values map[string]any) error {
	for key, value := range values {
		p, exists := s.params[key]
		if !exists {
			return fmt.Errorf("%w: %q", errors.ErrUnknownParameter, key)
		}
		if !typeAccepts(p.decl.Type, value) {
			return fmt.Errorf("%w: %q expects %s, got %T",
				errors.ErrParameterType, key, p.decl.Type, value)
		}
		p.value = value
		p.set = true
	}
	for _, name := range s.order {
		p := s.params[name]
		if p.decl.Required && !p.set && p.decl.Default == nil {
			return fmt.Errorf("%w: %q", errors.ErrParameterUnset, name)
		}
	}
	return nil
}

// value returns the bound value, falling back to the declared default. The
// second result is false for undeclared names and for unset parameters
// without a default.
func (s *Spec) value(name string) (any, bool) {
	p, exists := s.params[name]
	if !exists {
		return nil, false
	}
	if p.set {
		return p.value, true
	}
	if p.decl.Default != nil {
		return p.decl.Default, true
	}
	return nil, false
}

// typeAccepts reports whether a value satisfies a declared parameter type.
// JSON deserialization turns numbers into float64, so integral float64
// values satisfy TypeInt.
func typeAccepts(t ParamType, v any) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeBool:
		_, ok := v.(bool)
		return ok
	case TypeInt:
		switch n := v.(type) {
		case int, int32, int64:
			return true
		case float64:
			return n == float64(int64(n))
		default:
			return false
		}
	case TypeFloat:
		switch v.(type) {
		case int, int32, int64, float32, float64:
			return true
		default:
			return false
		}
	case TypeHandle, TypeAny, "":
		return true
	default:
		return false
	}
}

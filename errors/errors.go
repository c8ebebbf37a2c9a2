// Package errors provides standardized error handling for the weft bridge.
// It defines the error taxonomy shared by all packages: configuration errors
// (parameter schema misuse), binding errors (identity and entity creation),
// interchange errors (tensor conversion), registrar errors (type identifier
// misuse), and runtime errors (tick failures). Helper functions wrap errors
// with component and operation context in a single consistent format.
package errors

import (
	"errors"
	"fmt"
)

// Class represents the classification of an error for handling purposes.
type Class int

const (
	// ClassConfig covers parameter schema misuse and unresolved parameters,
	// detected eagerly at Initialize and fatal to that component's startup.
	ClassConfig Class = iota
	// ClassBinding covers identity resolution and entity creation failures.
	ClassBinding
	// ClassInterchange covers tensor descriptor and layout conversion
	// failures. Absence of an optional name is never an interchange error.
	ClassInterchange
	// ClassRegistrar covers type identifier allocation and registration
	// misuse, rejected synchronously at the offending call.
	ClassRegistrar
	// ClassRuntime covers tick-time operator failures surfaced to the
	// external engine together with the failing identity.
	ClassRuntime
)

// String returns the string representation of the error class.
func (c Class) String() string {
	switch c {
	case ClassConfig:
		return "config"
	case ClassBinding:
		return "binding"
	case ClassInterchange:
		return "interchange"
	case ClassRegistrar:
		return "registrar"
	case ClassRuntime:
		return "runtime"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions.
var (
	// Configuration errors
	ErrSetupAlreadyCalled = errors.New("setup already called")
	ErrSetupNotCalled     = errors.New("setup not called")
	ErrParameterUnset     = errors.New("required parameter not set")
	ErrUnknownParameter   = errors.New("unknown parameter")
	ErrParameterType      = errors.New("parameter value has wrong type")
	ErrDuplicateParameter = errors.New("parameter already declared")
	ErrLifecycleOrder     = errors.New("lifecycle called out of order")

	// Binding errors
	ErrStaleIdentity  = errors.New("identity refers to a destroyed component")
	ErrNotBound       = errors.New("component not bound to a runtime context")
	ErrAlreadyBound   = errors.New("component already bound")
	ErrEntityReleased = errors.New("entity handle already released")
	ErrArenaExhausted = errors.New("arena exhausted")

	// Interchange errors
	ErrUnsupportedDtype  = errors.New("unsupported dtype")
	ErrUnsupportedLayout = errors.New("unsupported pixel layout")
	ErrBadDescriptor     = errors.New("invalid tensor descriptor")
	ErrCapsuleExpired    = errors.New("capsule backing entity released")

	// Registrar errors
	ErrReservedTypeID    = errors.New("reserved zero type id")
	ErrTypeIDCollision   = errors.New("type id already allocated")
	ErrAlreadyRegistered = errors.New("extension already registered")
	ErrTypeUnregistered  = errors.New("type not registered")
	ErrKindMismatch      = errors.New("type id allocated for a different kind")

	// Runtime errors
	ErrConditionRetired = errors.New("condition declared it will never fire again")
	ErrQueueFull        = errors.New("port queue full")
	ErrPortUnknown      = errors.New("unknown port")
)

// ClassifiedError wraps an error with its classification and the component
// and operation that produced it.
type ClassifiedError struct {
	Class     Class
	Err       error
	Component string
	Operation string
}

// Error implements the error interface.
func (ce *ClassifiedError) Error() string {
	return ce.Err.Error()
}

// Unwrap returns the underlying error.
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// Wrap creates a standardized error with context following the pattern
// "component.operation: action failed: %w".
func Wrap(err error, component, operation, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, operation, action, err)
}

func wrapClassified(class Class, err error, component, operation, action string) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{
		Class:     class,
		Err:       Wrap(err, component, operation, action),
		Component: component,
		Operation: operation,
	}
}

// WrapConfig wraps an error as a configuration error with context.
func WrapConfig(err error, component, operation, action string) error {
	return wrapClassified(ClassConfig, err, component, operation, action)
}

// WrapBinding wraps an error as a binding error with context.
func WrapBinding(err error, component, operation, action string) error {
	return wrapClassified(ClassBinding, err, component, operation, action)
}

// WrapInterchange wraps an error as an interchange error with context.
func WrapInterchange(err error, component, operation, action string) error {
	return wrapClassified(ClassInterchange, err, component, operation, action)
}

// WrapRegistrar wraps an error as a registrar error with context.
func WrapRegistrar(err error, component, operation, action string) error {
	return wrapClassified(ClassRegistrar, err, component, operation, action)
}

// WrapRuntime wraps an error as a runtime error with context.
func WrapRuntime(err error, component, operation, action string) error {
	return wrapClassified(ClassRuntime, err, component, operation, action)
}

// IsConfig reports whether err is classified as a configuration error.
func IsConfig(err error) bool { return is(err, ClassConfig) }

// IsBinding reports whether err is classified as a binding error.
func IsBinding(err error) bool { return is(err, ClassBinding) }

// IsInterchange reports whether err is classified as an interchange error.
func IsInterchange(err error) bool { return is(err, ClassInterchange) }

// IsRegistrar reports whether err is classified as a registrar error.
func IsRegistrar(err error) bool { return is(err, ClassRegistrar) }

// IsRuntime reports whether err is classified as a runtime error.
func IsRuntime(err error) bool { return is(err, ClassRuntime) }

func is(err error, class Class) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == class
	}
	return false
}

// Classify returns the class of err, falling back to known sentinels when
// the error was not wrapped through this package.
func Classify(err error) (Class, bool) {
	if err == nil {
		return 0, false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class, true
	}
	switch {
	case errors.Is(err, ErrSetupAlreadyCalled),
		errors.Is(err, ErrSetupNotCalled),
		errors.Is(err, ErrParameterUnset),
		errors.Is(err, ErrUnknownParameter),
		errors.Is(err, ErrParameterType),
		errors.Is(err, ErrDuplicateParameter),
		errors.Is(err, ErrLifecycleOrder):
		return ClassConfig, true
	case errors.Is(err, ErrStaleIdentity),
		errors.Is(err, ErrNotBound),
		errors.Is(err, ErrAlreadyBound),
		errors.Is(err, ErrEntityReleased),
		errors.Is(err, ErrArenaExhausted):
		return ClassBinding, true
	case errors.Is(err, ErrUnsupportedDtype),
		errors.Is(err, ErrUnsupportedLayout),
		errors.Is(err, ErrBadDescriptor),
		errors.Is(err, ErrCapsuleExpired):
		return ClassInterchange, true
	case errors.Is(err, ErrReservedTypeID),
		errors.Is(err, ErrTypeIDCollision),
		errors.Is(err, ErrAlreadyRegistered),
		errors.Is(err, ErrTypeUnregistered),
		errors.Is(err, ErrKindMismatch):
		return ClassRegistrar, true
	case errors.Is(err, ErrConditionRetired),
		errors.Is(err, ErrQueueFull),
		errors.Is(err, ErrPortUnknown):
		return ClassRuntime, true
	}
	return 0, false
}

// Is reports whether any error in err's chain matches target.
// Re-exported so callers don't need both this package and stdlib errors.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// New returns an error that formats as the given text.
func New(text string) error { return errors.New(text) }

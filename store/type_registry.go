package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// TypeRegistry maps registered Go types to stable names so that a
// checkpoint's last input can be serialized with a type tag and decoded
// back into the correct shape on restore.
type TypeRegistry struct {
	mu             sync.RWMutex
	typeNameToType map[string]reflect.Type
	typeToName     map[reflect.Type]string
}

// globalTypeRegistry is the singleton instance of TypeRegistry
var globalTypeRegistry = &TypeRegistry{
	typeNameToType: make(map[string]reflect.Type),
	typeToName:     make(map[reflect.Type]string),
}

// GlobalTypeRegistry returns the global type registry instance
func GlobalTypeRegistry() *TypeRegistry {
	return globalTypeRegistry
}

// RegisterType registers value's type under typeName in the global registry.
//
// Example usage:
//
//	var input MyInput
//	store.RegisterType(input, "MyInput")
func RegisterType(value any, typeName string) error {
	return globalTypeRegistry.Register(reflect.TypeOf(value), typeName)
}

// Register registers a type under typeName.
func (r *TypeRegistry) Register(t reflect.Type, typeName string) error {
	if t == nil {
		return fmt.Errorf("cannot register nil type as %s", typeName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existingName, ok := r.typeToName[t]; ok && existingName != typeName {
		return fmt.Errorf("type %v already registered as %s", t, existingName)
	}
	if existing, ok := r.typeNameToType[typeName]; ok && existing != t {
		return fmt.Errorf("name %s already registered for %v", typeName, existing)
	}

	r.typeNameToType[typeName] = t
	r.typeToName[t] = typeName
	return nil
}

// TypeByName returns the reflect.Type for a registered type name.
func (r *TypeRegistry) TypeByName(typeName string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.typeNameToType[typeName]
	return t, ok
}

// NameOf returns the registered name for a type.
func (r *TypeRegistry) NameOf(t reflect.Type) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.typeToName[t]
	return name, ok
}

// TypedValue is a serialized value carrying its runtime type tag. Values of
// unregistered types serialize without a tag and decode as generic JSON.
type TypedValue struct {
	TypeName string          `json:"_type,omitempty"`
	Value    json.RawMessage `json:"_value"`
}

// NewTypedValue encodes value with its registered type tag, if any.
func NewTypedValue(value any) (*TypedValue, error) {
	if value == nil {
		return nil, nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input value: %w", err)
	}

	typeName, _ := globalTypeRegistry.NameOf(reflect.TypeOf(value))
	return &TypedValue{
		TypeName: typeName,
		Value:    json.RawMessage(data),
	}, nil
}

// Decode converts the serialized value back into a Go value. When the type
// tag names a registered type the result has that concrete type; otherwise
// the JSON decodes into the generic representation (map/slice/string/float).
func (tv *TypedValue) Decode() (any, error) {
	if tv == nil {
		return nil, nil
	}

	if tv.TypeName == "" {
		var result any
		if err := json.Unmarshal(tv.Value, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal untyped value: %w", err)
		}
		return result, nil
	}

	t, ok := globalTypeRegistry.TypeByName(tv.TypeName)
	if !ok {
		return nil, fmt.Errorf("unknown type: %s", tv.TypeName)
	}

	ptr := reflect.New(t)
	if err := json.Unmarshal(tv.Value, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal value as %s: %w", tv.TypeName, err)
	}
	return ptr.Elem().Interface(), nil
}

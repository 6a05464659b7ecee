// Package serialize provides CloudFormation-specific serialization utilities.
package serialize

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

// Resource serializes a Go struct to CloudFormation resource properties.
// It handles:
// - JSON tag names (Type_ tagged "Type" becomes Type)
// - Omitting zero values of omitempty fields
// - Nested structs
// - json.Marshaler values (intrinsics, AttrRef)
func Resource(v any) (map[string]any, error) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil, nil
		}
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("expected struct, got %s", val.Kind())
	}

	result := make(map[string]any)
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		fieldVal := val.Field(i)

		if !field.IsExported() {
			continue
		}

		name, omitEmpty := fieldName(field)
		if name == "-" {
			continue
		}

		if omitEmpty && isZeroValue(fieldVal) {
			continue
		}

		serialized, err := serializeValue(fieldVal)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		if serialized != nil {
			result[name] = serialized
		}
	}

	return result, nil
}

// fieldName returns the property name for a struct field and whether
// zero values are dropped. Untagged fields are treated as omitempty.
func fieldName(field reflect.StructField) (string, bool) {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name, true
	}

	parts := strings.Split(tag, ",")
	name := parts[0]
	if name == "" {
		name = field.Name
	}
	omitEmpty := false
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty
}

// isZeroValue returns true if the value is the zero value for its type.
func isZeroValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Slice, reflect.Map:
		return v.IsNil() || v.Len() == 0
	case reflect.String:
		return v.String() == ""
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Struct:
		if v.CanInterface() {
			if zeroer, ok := v.Interface().(interface{ IsZero() bool }); ok {
				return zeroer.IsZero()
			}
		}
		return false
	default:
		return false
	}
}

// serializeValue converts a reflect.Value to a JSON-compatible value.
func serializeValue(v reflect.Value) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}

	if v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		if v.CanInterface() {
			if _, ok := v.Interface().(json.Marshaler); ok {
				return marshalGeneric(v.Interface())
			}
		}
		return serializeValue(v.Elem())
	}

	if v.CanInterface() {
		if _, ok := v.Interface().(json.Marshaler); ok {
			return marshalGeneric(v.Interface())
		}
	}

	switch v.Kind() {
	case reflect.Struct:
		return Resource(v.Interface())

	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		result := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			elem, err := serializeValue(v.Index(i))
			if err != nil {
				return nil, err
			}
			result[i] = elem
		}
		return result, nil

	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}
		result := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			key := fmt.Sprint(iter.Key().Interface())
			val, err := serializeValue(iter.Value())
			if err != nil {
				return nil, err
			}
			result[key] = val
		}
		return result, nil

	case reflect.String:
		return v.String(), nil

	case reflect.Bool:
		return v.Bool(), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint(), nil

	case reflect.Float32, reflect.Float64:
		return v.Float(), nil

	default:
		return marshalGeneric(v.Interface())
	}
}

// marshalGeneric round-trips a value through encoding/json.
func marshalGeneric(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// subVariable matches ${Name} and ${Name.Attribute} in Fn::Sub strings.
// ${!Literal} escapes are skipped by the leading character class.
var subVariable = regexp.MustCompile(`\$\{([A-Za-z0-9:]+)(?:\.[A-Za-z0-9.]+)?\}`)

// References returns the sorted, de-duplicated logical names referenced
// by a serialized value through Ref, Fn::GetAtt or Fn::Sub. Pseudo
// parameters (AWS::...) are included; callers filter them.
func References(v any) []string {
	seen := make(map[string]bool)
	collectRefs(v, seen)

	refs := make([]string, 0, len(seen))
	for name := range seen {
		refs = append(refs, name)
	}
	sort.Strings(refs)
	return refs
}

// AttributeReferences returns the logical names referenced through Fn::GetAtt.
func AttributeReferences(v any) []string {
	seen := make(map[string]bool)
	walk(v, func(key string, arg any) {
		if key == "Fn::GetAtt" {
			if name := getAttTarget(arg); name != "" {
				seen[name] = true
			}
		}
	})

	refs := make([]string, 0, len(seen))
	for name := range seen {
		refs = append(refs, name)
	}
	sort.Strings(refs)
	return refs
}

func collectRefs(v any, seen map[string]bool) {
	walk(v, func(key string, arg any) {
		switch key {
		case "Ref":
			if name, ok := arg.(string); ok && name != "" {
				seen[name] = true
			}
		case "Fn::GetAtt":
			if name := getAttTarget(arg); name != "" {
				seen[name] = true
			}
		case "Fn::Sub":
			for _, name := range subTargets(arg) {
				seen[name] = true
			}
		}
	})
}

// walk calls fn for every single-key intrinsic map in v, then descends.
func walk(v any, fn func(key string, arg any)) {
	switch val := v.(type) {
	case map[string]any:
		if len(val) == 1 {
			for key, arg := range val {
				if key == "Ref" || strings.HasPrefix(key, "Fn::") {
					fn(key, arg)
				}
			}
		}
		for _, child := range val {
			walk(child, fn)
		}
	case []any:
		for _, child := range val {
			walk(child, fn)
		}
	}
}

func getAttTarget(arg any) string {
	switch a := arg.(type) {
	case []any:
		if len(a) > 0 {
			if name, ok := a[0].(string); ok {
				return name
			}
		}
	case []string:
		if len(a) > 0 {
			return a[0]
		}
	case string:
		name, _, _ := strings.Cut(a, ".")
		return name
	}
	return ""
}

// subTargets extracts variables from an Fn::Sub argument, excluding the
// names bound by the variable map form.
func subTargets(arg any) []string {
	var (
		text  string
		bound map[string]any
	)
	switch a := arg.(type) {
	case string:
		text = a
	case []any:
		if len(a) > 0 {
			text, _ = a[0].(string)
		}
		if len(a) > 1 {
			bound, _ = a[1].(map[string]any)
		}
	}

	var names []string
	for _, m := range subVariable.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if _, ok := bound[name]; ok {
			continue
		}
		names = append(names, name)
	}
	return names
}

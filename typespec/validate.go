package typespec

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/stepflow-io/stepflow/perr"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// IsJSONSerializable reports whether a parameter value can be represented in
// the finalized configuration. Only JSON-representable values are allowed.
func IsJSONSerializable(value any) bool {
	_, err := json.Marshal(value)
	return err == nil
}

// ValidateValue checks a raw Go value against a declared type. It returns a
// bad request error naming the offending argument if the value does not
// conform.
func ValidateValue(name string, value any, spec Spec) error {
	if !IsJSONSerializable(value) {
		return perr.BadRequestWithMessage(fmt.Sprintf("argument type for argument '%s' is not JSON serializable", name))
	}

	switch spec.kind {
	case KindAny:
		return nil
	case KindNone:
		if value != nil {
			return mismatch(name, spec, value)
		}
		return nil
	case KindNamed:
		// Registered object types are materialized by their registered
		// serializer, the shape is not re-validated here.
		return nil
	case KindScalar:
		if value == nil {
			return perr.BadRequestWithMessage(fmt.Sprintf("invalid data type for argument '%s' wanted %s but received null", name, spec.scalar.FriendlyName()))
		}
		if _, err := gocty.ToCtyValue(value, spec.scalar); err != nil {
			return mismatch(name, spec, value)
		}
		return nil
	case KindUnion:
		for _, member := range spec.members {
			if err := ValidateValue(name, value, member); err == nil {
				return nil
			}
		}
		return mismatch(name, spec, value)
	}
	return perr.InternalWithMessage("unknown declared type kind")
}

func mismatch(name string, spec Spec, value any) error {
	received := "null"
	if t := reflect.TypeOf(value); t != nil {
		received = t.String()
	}
	return perr.BadRequestWithMessage(fmt.Sprintf("invalid data type for argument '%s' wanted %s but received %s", name, spec.String(), received))
}

// Implied derives a declared type from a raw Go value, used for external
// artifacts that carry a value but no declared type.
func Implied(value any) (Spec, error) {
	if value == nil {
		return None(), nil
	}

	ctyType, err := gocty.ImpliedType(value)
	if err == nil && ctyType != cty.NilType {
		return Scalar(ctyType), nil
	}

	// Structured values without a cty equivalent resolve to a named type
	// keyed by their Go type, so materializer registration can match them.
	t := reflect.TypeOf(value)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return Spec{}, perr.BadRequestWithMessage(fmt.Sprintf("unable to derive a declared type for value of type %T", value))
	}
	return Named(t.String()), nil
}

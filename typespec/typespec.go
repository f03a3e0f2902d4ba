package typespec

import (
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Kind discriminates the closed set of declared type shapes.
type Kind int

const (
	KindAny Kind = iota
	KindNone
	KindScalar
	KindNamed
	KindUnion
)

// Spec is an immutable declared type. It is constructed once during
// interface analysis and never re-introspected afterwards.
type Spec struct {
	kind    Kind
	scalar  cty.Type
	name    string
	members []Spec
}

func Any() Spec {
	return Spec{kind: KindAny}
}

// None is the null-placeholder type, used for union members that explicitly
// allow a missing value.
func None() Spec {
	return Spec{kind: KindNone}
}

func Scalar(ctyType cty.Type) Spec {
	return Spec{kind: KindScalar, scalar: ctyType}
}

// Named identifies a registered object type by its identifier, e.g. a model
// or dataset type that a materializer has been registered for.
func Named(name string) Spec {
	return Spec{kind: KindNamed, name: name}
}

func Union(members ...Spec) Spec {
	return Spec{kind: KindUnion, members: members}
}

func (s Spec) Kind() Kind {
	return s.kind
}

func (s Spec) IsAny() bool {
	return s.kind == KindAny
}

func (s Spec) IsUnion() bool {
	return s.kind == KindUnion
}

// Members returns the member types of a union in declaration order. For
// non-union types it returns the type itself as a single-element list.
func (s Spec) Members() []Spec {
	if s.kind != KindUnion {
		return []Spec{s}
	}
	members := make([]Spec, len(s.members))
	copy(members, s.members)
	return members
}

// CtyType returns the underlying cty type of a scalar spec and cty.NilType
// for every other kind.
func (s Spec) CtyType() cty.Type {
	if s.kind != KindScalar {
		return cty.NilType
	}
	return s.scalar
}

func (s Spec) Name() string {
	return s.name
}

func (s Spec) Equal(other Spec) bool {
	if s.kind != other.kind {
		return false
	}
	switch s.kind {
	case KindScalar:
		return s.scalar.Equals(other.scalar)
	case KindNamed:
		return s.name == other.name
	case KindUnion:
		if len(s.members) != len(other.members) {
			return false
		}
		for i := range s.members {
			if !s.members[i].Equal(other.members[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Key returns a deterministic registry key for the type. Unions have no key
// of their own, they are resolved member by member.
func (s Spec) Key() string {
	switch s.kind {
	case KindAny:
		return "any"
	case KindNone:
		return "none"
	case KindScalar:
		return "scalar:" + s.scalar.FriendlyName()
	case KindNamed:
		return "named:" + s.name
	case KindUnion:
		keys := make([]string, len(s.members))
		for i, m := range s.members {
			keys[i] = m.Key()
		}
		return "union[" + strings.Join(keys, "|") + "]"
	}
	return "unknown"
}

func (s Spec) String() string {
	switch s.kind {
	case KindAny:
		return "any"
	case KindNone:
		return "null"
	case KindScalar:
		return s.scalar.FriendlyName()
	case KindNamed:
		return s.name
	case KindUnion:
		names := make([]string, len(s.members))
		for i, m := range s.members {
			names[i] = m.String()
		}
		return strings.Join(names, " | ")
	}
	return "unknown"
}

package entities

import (
	"fmt"
	"strings"
)

// TypeVisibility describes the accessibility of a type member.
// Values are part of the ABI and must not be reordered.
type TypeVisibility int32

const (
	VisibilityPublic TypeVisibility = iota
	VisibilityPrivate
	VisibilityProtected
	VisibilityInternal
	VisibilityProtectedPublic
	VisibilityPrivateProtected
)

var visibilityNames = [...]string{
	VisibilityPublic:           "Public",
	VisibilityPrivate:          "Private",
	VisibilityProtected:        "Protected",
	VisibilityInternal:         "Internal",
	VisibilityProtectedPublic:  "ProtectedPublic",
	VisibilityPrivateProtected: "PrivateProtected",
}

func (v TypeVisibility) String() string {
	if v < 0 || int(v) >= len(visibilityNames) {
		return fmt.Sprintf("TypeVisibility(%d)", int32(v))
	}
	return visibilityNames[v]
}

// AccessFlags is the set of access attributes recorded for a member.
type AccessFlags uint8

const (
	AccessPublic AccessFlags = 1 << iota
	AccessPrivate
	AccessFamily
	AccessAssembly
	AccessFamilyOrAssembly
	AccessFamilyAndAssembly
)

// accessOrder is the precedence used when more than one flag is set.
var accessOrder = []struct {
	flag AccessFlags
	vis  TypeVisibility
}{
	{AccessPublic, VisibilityPublic},
	{AccessPrivate, VisibilityPrivate},
	{AccessFamily, VisibilityProtected},
	{AccessAssembly, VisibilityInternal},
	{AccessFamilyOrAssembly, VisibilityProtectedPublic},
	{AccessFamilyAndAssembly, VisibilityPrivateProtected},
}

// Visibility derives the TypeVisibility for the flags.
// A flag set matching nothing maps to VisibilityPublic.
func (f AccessFlags) Visibility() TypeVisibility {
	for _, e := range accessOrder {
		if f&e.flag != 0 {
			return e.vis
		}
	}
	return VisibilityPublic
}

// ParseAccessFlags parses an access keyword as written in a `coral` struct tag.
func ParseAccessFlags(s string) (AccessFlags, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public":
		return AccessPublic, nil
	case "private":
		return AccessPrivate, nil
	case "family", "protected":
		return AccessFamily, nil
	case "assembly", "internal":
		return AccessAssembly, nil
	case "famorassem", "protected internal":
		return AccessFamilyOrAssembly, nil
	case "famandassem", "private protected":
		return AccessFamilyAndAssembly, nil
	case "":
		return 0, nil
	default:
		return 0, fmt.Errorf("unknown access keyword %q", s)
	}
}

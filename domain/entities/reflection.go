package entities

// ReflectionType is a point-in-time snapshot of a type's identity.
// It does not track later changes to the type catalog.
type ReflectionType struct {
	FullName              string `json:"full_name"`
	Name                  string `json:"name"`
	Namespace             string `json:"namespace"`
	BaseTypeName          string `json:"base_type_name,omitempty"`
	AssemblyQualifiedName string `json:"assembly_qualified_name"`
}

// MemberKind distinguishes methods from fields.
type MemberKind uint8

const (
	MemberMethod MemberKind = iota
	MemberField
)

// MemberDescriptor names one method or field of a type and its visibility.
type MemberDescriptor struct {
	Name       string         `json:"name"`
	Visibility TypeVisibility `json:"visibility"`
	Static     bool           `json:"static,omitempty"`
}

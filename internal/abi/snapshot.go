package abi

import (
	stdErrors "errors"

	"github.com/coral-dev/coral-go/domain/entities"
)

// EncodeReflectionType encodes every field of rt into set.
// An empty BaseTypeName stays the empty representation.
func EncodeReflectionType(set *OwnedSet, rt *entities.ReflectionType) (ReflectionTypeLayout, error) {
	var l ReflectionTypeLayout
	fields := []struct {
		dst  *UnmanagedString
		text string
	}{
		{&l.FullName, rt.FullName},
		{&l.Name, rt.Name},
		{&l.Namespace, rt.Namespace},
		{&l.BaseTypeName, rt.BaseTypeName},
		{&l.AssemblyQualifiedName, rt.AssemblyQualifiedName},
	}
	for _, f := range fields {
		s, err := set.Encode(f.text)
		if err != nil {
			return ReflectionTypeLayout{}, err
		}
		*f.dst = s
	}
	return l, nil
}

// EncodeMembers encodes descriptor names into set.
func EncodeMembers(set *OwnedSet, members []entities.MemberDescriptor) ([]MemberLayout, error) {
	out := make([]MemberLayout, len(members))
	for i, m := range members {
		name, err := set.Encode(m.Name)
		if err != nil {
			return nil, err
		}
		out[i] = MemberLayout{Name: name, Visibility: m.Visibility}
	}
	return out, nil
}

// DecodeReflectionType reads the text referenced by l.
func (c *Codec) DecodeReflectionType(l ReflectionTypeLayout) (entities.ReflectionType, error) {
	var rt entities.ReflectionType
	var err error
	decode := func(s UnmanagedString) string {
		if err != nil {
			return ""
		}
		var text string
		text, err = c.Decode(s)
		return text
	}
	rt.FullName = decode(l.FullName)
	rt.Name = decode(l.Name)
	rt.Namespace = decode(l.Namespace)
	rt.BaseTypeName = decode(l.BaseTypeName)
	rt.AssemblyQualifiedName = decode(l.AssemblyQualifiedName)
	return rt, err
}

// FreeReflectionType frees every string referenced by l.
func (c *Codec) FreeReflectionType(l ReflectionTypeLayout) error {
	var errs []error
	for _, s := range l.fields() {
		if err := c.Free(s); err != nil {
			errs = append(errs, err)
		}
	}
	return stdErrors.Join(errs...)
}

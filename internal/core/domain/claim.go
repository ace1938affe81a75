package domain

import (
	"github.com/mitchellh/mapstructure"
)

type claimKind uint8

const (
	claimNone claimKind = iota
	claimString
	claimObject
)

// RoleClaim is a single raw role claim as supplied by the identity backend.
// The backend sends either a bare string or an object carrying a "role" and/or
// "name" field; both shapes are parsed into this value at the transport boundary
// so nothing past it ever inspects untyped JSON.
type RoleClaim struct {
	kind  claimKind
	value string
	role  string
	name  string
}

// StringClaim builds a claim from a bare role name.
func StringClaim(v string) RoleClaim {
	return RoleClaim{kind: claimString, value: v}
}

// ObjectClaim builds a claim from a structured {"role", "name"} object.
func ObjectClaim(role, name string) RoleClaim {
	return RoleClaim{kind: claimObject, role: role, name: name}
}

// IsObject reports whether the claim arrived as a structured object.
func (c RoleClaim) IsObject() bool { return c.kind == claimObject }

// Name normalises the claim to a bare role name: the string itself, or the
// object's role field, falling back to its name field, falling back to "".
func (c RoleClaim) Name() string {
	switch c.kind {
	case claimString:
		return c.value
	case claimObject:
		if c.role != "" {
			return c.role
		}
		return c.name
	default:
		return ""
	}
}

type objectClaim struct {
	Role string `mapstructure:"role"`
	Name string `mapstructure:"name"`
}

// ParseRoleClaim converts one decoded JSON value into a RoleClaim.
// Values of any other shape yield an empty claim, which the resolver drops.
func ParseRoleClaim(raw any) RoleClaim {
	switch v := raw.(type) {
	case string:
		return StringClaim(v)
	case map[string]any:
		var oc objectClaim
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &oc,
		})
		if err != nil {
			return RoleClaim{}
		}
		if err := dec.Decode(v); err != nil {
			return ObjectClaim("", "")
		}
		return ObjectClaim(oc.Role, oc.Name)
	default:
		return RoleClaim{}
	}
}

// ParseRoleClaims parses a decoded JSON array of claims, preserving order.
func ParseRoleClaims(raw []any) []RoleClaim {
	claims := make([]RoleClaim, 0, len(raw))
	for _, r := range raw {
		claims = append(claims, ParseRoleClaim(r))
	}
	return claims
}

// RoleClaimsFromRoles wraps resolved roles back into string claims.
func RoleClaimsFromRoles(roles []Role) []RoleClaim {
	claims := make([]RoleClaim, 0, len(roles))
	for _, r := range roles {
		claims = append(claims, StringClaim(string(r)))
	}
	return claims
}

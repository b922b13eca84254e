package commands

import (
	"fmt"
	"strings"
)

// Guild role names.
const (
	RoleHeadChef = "Head Chef"
	RoleChef     = "Chef"
	RoleTrainee  = "Trainee"
)

// AssignableRoles maps the keys accepted by !assign to guild role names.
var AssignableRoles = map[string]string{
	"HEAD_CHEF": RoleHeadChef,
	"CHEF":      RoleChef,
	"TRAINEE":   RoleTrainee,
}

// LookupAssignable resolves an !assign key, case-insensitively. Keys outside
// AssignableRoles yield ErrUnknownRole.
func LookupAssignable(key string) (string, error) {
	name, ok := AssignableRoles[strings.ToUpper(key)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, key)
	}
	return name, nil
}

// HasRole reports whether roles contains want. Role names compare exactly,
// as Discord does.
func HasRole(roles []string, want string) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}

package commands

import "errors"

var (
	// ErrUnauthorized is returned when the caller lacks a command's role.
	ErrUnauthorized = errors.New("missing required role")
	// ErrUnknownRole is returned for an !assign key outside AssignableRoles.
	ErrUnknownRole = errors.New("not an assignable role")
	// ErrRoleNotFound is returned by a Guild when the role does not exist.
	ErrRoleNotFound = errors.New("role not found")
	// ErrForbidden is returned by a Guild when the bot lacks permission.
	ErrForbidden = errors.New("missing bot permission")
	// ErrUsage makes the dispatcher reply with the command's usage text.
	ErrUsage = errors.New("bad command usage")
)

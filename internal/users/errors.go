package users

import "errors"

var (
	// ErrNotFound indicates the target user record does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrSelfDemotion indicates a caller tried to revoke their own admin flag.
	ErrSelfDemotion = errors.New("cannot remove your own admin privileges")
	// ErrDefaultAdminDemotion indicates an attempt to demote the default admin.
	ErrDefaultAdminDemotion = errors.New("cannot remove admin privileges from the default admin user")
	// ErrLastAdmin indicates the mutation would leave zero admin records.
	ErrLastAdmin = errors.New("cannot remove the last admin user")
)

package rbac

// Default role policy. superadmin inherits everything; admin everything but
// platform management.
var RolePermissions = map[string][]string{
	"student": {
		"exam:view",
		"attempt:create",
		"attempt:view-own",
		"payment:create",
		"progress:view-own",
		"certificate:view-own",
		"user:change_password",
	},
	"professor": {
		"course:create",
		"module:create",
		"exam:create",
		"exam:view",
		"exam:view-full",
		"attempt:view-all",
		"progress:view-all",
		"users:list",
		"user:change_password",
	},
	"admin": {
		"course:*",
		"module:*",
		"exam:*",
		"attempt:*",
		"payment:*",
		"progress:*",
		"certificate:*",
		"events:*",
		"users:*",
		"user:*",
	},
	"superadmin": {
		"*", // everything
	},
}

package role

import (
	"strings"

	"github.com/frahmantamala/document-management/internal/auth"
)

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type CreateRoleDTO struct {
	Name           string   `json:"name"`
	PermissionKeys []string `json:"permission_keys"`
}

func (d *CreateRoleDTO) Validate() error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return &ValidationError{Message: "name is required"}
	}
	if len(d.Name) > 64 {
		return &ValidationError{Message: "name must be at most 64 characters"}
	}
	return validateKeys(d.PermissionKeys)
}

type UpdatePermissionsDTO struct {
	PermissionKeys []string `json:"permission_keys"`
}

func (d *UpdatePermissionsDTO) Validate() error {
	return validateKeys(d.PermissionKeys)
}

func validateKeys(keys []string) error {
	for _, key := range keys {
		if _, err := auth.ParsePermission(key); err != nil {
			return &ValidationError{Message: "invalid permission key: " + key}
		}
	}
	return nil
}

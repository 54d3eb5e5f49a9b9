package users

import (
	"time"

	"github.com/kis-labs/webbuilder/internal/principal"
)

// Account is the administrative view of a principal. It never carries the
// password digest.
type Account struct {
	ID        int64          `json:"id"`
	LoginName string         `json:"loginName"`
	Role      principal.Role `json:"role"`
	DeletedAt *time.Time     `json:"deletedAt"`
}

// PasswordChange is a request to replace a principal's password.
type PasswordChange struct {
	OldPassword        string `json:"oldPassword" validate:"required"`
	NewPassword        string `json:"newPassword" validate:"required,min=6,max=72"`
	ConfirmNewPassword string `json:"confirmNewPassword" validate:"required,eqfield=NewPassword"`
}

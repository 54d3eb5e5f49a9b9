// Package actionlog records an audit trail of account and project actions.
// Entries are written asynchronously through the job queue so that a slow or
// unavailable queue never fails the originating request.
package actionlog

import "time"

// Action names a recorded event.
type Action string

const (
	ActionLogin            Action = "login"
	ActionRegister         Action = "register"
	ActionPasswordChange   Action = "password_change"
	ActionDeactivate       Action = "deactivate_user"
	ActionRestore          Action = "restore_user"
	ActionProjectCreate    Action = "create_project"
	ActionProjectDuplicate Action = "duplicate_project"
)

// Entry is one audit record.
type Entry struct {
	UserID int64     `json:"userId"`
	Action Action    `json:"action"`
	At     time.Time `json:"at"`
}

package account

import (
	"github.com/linkyapp/linky/internal/database"
)

// Action names something a user may be allowed to do.
type Action string

const (
	ActionViewLinks      Action = "links.view"
	ActionAddLink        Action = "links.add"
	ActionChangeLink     Action = "links.change"
	ActionDeleteLink     Action = "links.delete"
	ActionViewSettings   Action = "settings.view"
	ActionChangeSettings Action = "settings.change"

	ActionListAllLinks Action = "links.view_all"
	ActionListUsers    Action = "users.view"
	ActionChangeUser   Action = "users.change"
	ActionDeleteUser   Action = "users.delete"
	ActionManageServer Action = "server.manage"
)

var ownerActions = map[Action]struct{}{
	ActionViewLinks:      {},
	ActionAddLink:        {},
	ActionChangeLink:     {},
	ActionDeleteLink:     {},
	ActionViewSettings:   {},
	ActionChangeSettings: {},
}

var adminActions = map[Action]struct{}{
	ActionListAllLinks: {},
	ActionListUsers:    {},
	ActionChangeUser:   {},
	ActionDeleteUser:   {},
	ActionManageServer: {},
}

// Policy decides whether a user may perform an action.
type Policy struct {
	allowAll bool
}

// NewPolicy creates a policy. With allowAll every check passes, for every user.
func NewPolicy(allowAll bool) *Policy {
	return &Policy{allowAll: allowAll}
}

// HasPermission reports whether user may perform action.
// Active users may act on their own links and settings. Administrative actions
// need the admin or superuser flag. Unknown actions are denied.
func (p *Policy) HasPermission(user *database.User, action Action) bool {
	if p.allowAll {
		return true
	}
	if user == nil || !user.IsActive {
		return false
	}
	if _, ok := ownerActions[action]; ok {
		return true
	}
	if _, ok := adminActions[action]; ok {
		return user.IsStaff()
	}
	return false
}

// AllowsAll reports whether the policy is in allow-all mode.
func (p *Policy) AllowsAll() bool {
	return p.allowAll
}

// Package gate holds the human-in-the-loop collaborators of the console:
// the confirmation dialog that every mutating action waits on, and the
// progress/notice surface used while and after a mutation runs.
package gate

import (
	"context"
	"fmt"
	"time"
)

// PropagationDelay is how long a role change takes to reach every user
// holding the role. It matches the backend permission cache TTL.
const PropagationDelay = 60 * time.Second

// Prompt is the content of a confirmation dialog.
type Prompt struct {
	Title        string
	Body         string
	ConfirmLabel string
	Danger       bool
}

// Gate blocks until the operator confirms or declines a prompt.
type Gate interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

// Notifier surfaces progress and outcomes of mutations to the operator.
type Notifier interface {
	// Progress shows a blocking indicator; the returned func dismisses it.
	Progress(title string) (done func())
	Success(msg string)
	Warn(msg string)
	Error(op string, err error)
}

// Action is the direction of a permission toggle.
type Action string

const (
	Enable  Action = "enable"
	Disable Action = "disable"
)

// ActionFor returns the action that flips a cell currently at granted.
func ActionFor(granted bool) Action {
	if granted {
		return Disable
	}
	return Enable
}

// TogglePrompt names the role, module, kind and action of a cell toggle and
// discloses how far and how fast the change spreads.
func TogglePrompt(role, module, kind string, action Action) Prompt {
	verb := "Enable"
	if action == Disable {
		verb = "Disable"
	}
	return Prompt{
		Title: verb + " permission",
		Body: fmt.Sprintf(
			"%s %q on %s for role %q?\nEvery user holding %q is affected; the change reaches them within about %s.",
			verb, kind, module, role, role, humanDelay(),
		),
		ConfirmLabel: verb,
		Danger:       action == Disable,
	}
}

// DeleteRolePrompt warns that deleting a role is irreversible.
func DeleteRolePrompt(role string) Prompt {
	return Prompt{
		Title: "Delete role",
		Body: fmt.Sprintf(
			"Delete role %q? This cannot be undone.\nEvery user holding %q loses its permissions within about %s.",
			role, role, humanDelay(),
		),
		ConfirmLabel: "Delete",
		Danger:       true,
	}
}

// CreateRolePrompt asks before adding a role.
func CreateRolePrompt(name string) Prompt {
	return Prompt{
		Title:        "Create role",
		Body:         fmt.Sprintf("Create role %q? It starts with no permissions.", name),
		ConfirmLabel: "Create",
	}
}

// RenameRolePrompt discloses that a rename reaches users asynchronously.
func RenameRolePrompt(oldName, newName string) Prompt {
	return Prompt{
		Title: "Rename role",
		Body: fmt.Sprintf(
			"Rename role %q to %q?\nUsers holding the role see the new name within about %s.",
			oldName, newName, humanDelay(),
		),
		ConfirmLabel: "Rename",
	}
}

// SavePrompt asks before a bulk save of a role's whole matrix.
func SavePrompt(role string) Prompt {
	return Prompt{
		Title: "Save permissions",
		Body: fmt.Sprintf(
			"Replace every permission of role %q with the matrix shown?\nEvery user holding %q is affected within about %s.",
			role, role, humanDelay(),
		),
		ConfirmLabel: "Save",
	}
}

func humanDelay() string {
	return fmt.Sprintf("%d seconds", int(PropagationDelay/time.Second))
}

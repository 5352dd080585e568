// Package cmd is the transport-agnostic command core. A command has a name,
// a description and Run(ctx, invocation); adapters decide how it is
// registered and dispatched.
package cmd

import "context"

// Invocation is one call of a command. ID is unique per call and Data holds
// the adapter's payload (for Discord, the session and interaction).
type Invocation struct {
	ID   string
	Args []string
	Data any
}

// Command is identity plus execution.
type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}

package commands

import "context"

// Command is an executable operation triggered by a chat command like
// "/status args".
type Command interface {
	Name() string
	Description() string
	Execute(ctx context.Context, args string) (string, error)
}

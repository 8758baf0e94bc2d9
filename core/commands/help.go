package commands

import (
	"context"
	"fmt"
	"strings"
)

// HelpCommand lists all registered commands.
type HelpCommand struct {
	Registry *Registry
}

func (h *HelpCommand) Name() string        { return "help" }
func (h *HelpCommand) Description() string { return "List available commands" }

func (h *HelpCommand) Execute(_ context.Context, _ string) (string, error) {
	all := h.Registry.List()
	if len(all) == 0 {
		return "No commands available.", nil
	}

	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, c := range all {
		fmt.Fprintf(&b, "  /%s - %s\n", c.Name(), c.Description())
	}
	return b.String(), nil
}

package commands

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ReplyCommand is a canned text response loaded from config.
type ReplyCommand struct {
	CmdName string `yaml:"name"`
	Desc    string `yaml:"description"`
	Text    string `yaml:"reply"`
}

func (c *ReplyCommand) Name() string        { return c.CmdName }
func (c *ReplyCommand) Description() string { return c.Desc }

func (c *ReplyCommand) Execute(_ context.Context, _ string) (string, error) {
	return c.Text, nil
}

// LoadReplies reads a YAML file of reply commands. Returns nil, nil if the
// file does not exist.
func LoadReplies(path string) ([]ReplyCommand, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read replies config: %w", err)
	}

	var cmds []ReplyCommand
	if err := yaml.Unmarshal(data, &cmds); err != nil {
		return nil, fmt.Errorf("parse replies config: %w", err)
	}

	for i, c := range cmds {
		if c.CmdName == "" {
			return nil, fmt.Errorf("reply at index %d missing name", i)
		}
		if c.Text == "" {
			return nil, fmt.Errorf("reply %q missing reply text", c.CmdName)
		}
	}

	return cmds, nil
}

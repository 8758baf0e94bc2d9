package commands

import "strings"

// ParseCommand extracts the command name and arguments from message text.
// It handles "/command", "/command args", and a leading community mention
// like "[club123|bot] /command args".
func ParseCommand(text string) (cmd, args string) {
	text = strings.TrimSpace(text)

	// Strip a leading [club...|name] mention.
	if strings.HasPrefix(text, "[club") {
		if end := strings.Index(text, "]"); end != -1 {
			text = strings.TrimSpace(text[end+1:])
		}
	}

	if !strings.HasPrefix(text, "/") {
		return "", ""
	}

	text = text[1:] // strip leading "/"
	parts := strings.SplitN(text, " ", 2)
	cmd = parts[0]
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}

	cmd = strings.ToLower(cmd)
	return cmd, args
}

package deps

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// ResolveBinary returns the absolute path of command when it is on PATH, or
// command unchanged otherwise.
func ResolveBinary(command string) string {
	command = strings.TrimSpace(command)
	if command == "" {
		return ""
	}
	if resolved, err := exec.LookPath(command); err == nil {
		return resolved
	}
	return command
}

// BinaryVersion runs `command -version` and returns the first output line,
// or "" when the binary cannot be executed.
func BinaryVersion(ctx context.Context, command string) string {
	if strings.TrimSpace(command) == "" {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	output, err := exec.CommandContext(ctx, command, "-version").Output()
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(output)), "\n")
	return strings.TrimSpace(line)
}

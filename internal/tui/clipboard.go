package tui

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// copyText copies text to the system clipboard.
func copyText(text string) error {
	cmd := detectClipboardCommand(exec.LookPath)
	if cmd == "" {
		return fmt.Errorf("no clipboard command available")
	}

	parts := strings.Fields(cmd)

	// Execute with text as stdin
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := exec.CommandContext(ctx, parts[0], parts[1:]...)
	c.Stdin = strings.NewReader(text)

	return c.Run()
}

// detectClipboardCommand returns the first available clipboard command,
// preferring Wayland.
func detectClipboardCommand(lookPath func(string) (string, error)) string {
	candidates := []string{
		"wl-copy",
		"xclip -selection clipboard",
		"xsel --clipboard --input",
	}
	for _, c := range candidates {
		if _, err := lookPath(strings.Fields(c)[0]); err == nil {
			return c
		}
	}
	return ""
}

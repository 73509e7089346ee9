package render

import (
	"fmt"

	"github.com/charmbracelet/glamour"

	"propdraft/internal/assembly"
)

// DefaultWrap is the terminal preview width when none is given.
const DefaultWrap = 80

// Terminal renders the document as styled text for a terminal. The style
// follows the terminal background; output that is not a terminal gets plain
// text.
func Terminal(snap assembly.DocumentSnapshot, width int) (string, error) {
	md, err := Markdown(snap)
	if err != nil {
		return "", err
	}
	if width <= 0 {
		width = DefaultWrap
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create terminal renderer: %w", err)
	}
	out, err := renderer.Render(md)
	if err != nil {
		return "", fmt.Errorf("failed to render preview: %w", err)
	}
	return out, nil
}

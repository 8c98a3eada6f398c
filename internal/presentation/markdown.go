package presentation

import (
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// defaultMarkdownWidth is used when the terminal width cannot be read.
const defaultMarkdownWidth = 100

// noMarginStyle removes glamour's document margins.
const noMarginStyle = `{
	"document": {
		"margin": 0,
		"block_prefix": "",
		"block_suffix": ""
	}
}`

// MarkdownRenderer renders markdown for a terminal.
type MarkdownRenderer struct {
	renderer *glamour.TermRenderer
}

// NewMarkdownRenderer wraps lines at width using style ("dark" or "light",
// "dark" when empty). A fixed style avoids querying the terminal background.
func NewMarkdownRenderer(width int, style string) (*MarkdownRenderer, error) {
	if style == "" {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithStylesFromJSONBytes([]byte(noMarginStyle)),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	return &MarkdownRenderer{renderer: r}, nil
}

// Render returns markdown styled for the terminal.
func (r *MarkdownRenderer) Render(markdown string) (string, error) {
	return r.renderer.Render(markdown)
}

// TerminalWidth reports whether w is a terminal and, if so, its width.
func TerminalWidth(w io.Writer) (int, bool) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0, false
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		width = defaultMarkdownWidth
	}
	return width, true
}

// FormatMarkdown writes markdown styled when the output is a terminal and
// raw is false, and unchanged otherwise.
func (f *Formatter) FormatMarkdown(markdown string, raw bool) error {
	if !raw {
		if width, ok := TerminalWidth(f.writer); ok {
			return f.FormatMarkdownWidth(markdown, width)
		}
	}
	_, err := io.WriteString(f.writer, markdown)
	return err
}

// FormatMarkdownWidth writes markdown rendered for a terminal of width columns.
func (f *Formatter) FormatMarkdownWidth(markdown string, width int) error {
	r, err := NewMarkdownRenderer(width, "")
	if err != nil {
		return err
	}
	out, err := r.Render(markdown)
	if err != nil {
		return err
	}
	_, err = io.WriteString(f.writer, out)
	return err
}

package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"swell/internal/source"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan, color.Bold)
	noteColor    = color.New(color.FgBlue)
	gutterColor  = color.New(color.FgHiBlack)
)

// ConsoleRenderer pretty-prints diagnostics with the source line and a
// caret underline beneath the primary span.
type ConsoleRenderer struct {
	Out     io.Writer
	Files   *source.FileSet
	NoColor bool
}

func (r *ConsoleRenderer) Render(bag *Bag) {
	if r.NoColor {
		color.NoColor = true
	}
	for _, d := range bag.Items() {
		r.renderOne(d)
	}
}

func (r *ConsoleRenderer) renderOne(d Diagnostic) {
	sev := infoColor
	switch d.Severity {
	case SevWarning:
		sev = warningColor
	case SevError:
		sev = errorColor
	}
	fmt.Fprintf(r.Out, "%s[%s]: %s\n", sev.Sprint(strings.ToLower(d.Severity.String())), d.Code, d.Message)

	f := r.Files.Get(d.Primary.File)
	if f != nil {
		pos := f.Position(d.Primary.Start)
		fmt.Fprintf(r.Out, "  %s %s:%d:%d\n", gutterColor.Sprint("-->"), f.Path, pos.Line, pos.Col)
		line := f.Line(pos.Line)
		if line != "" {
			gutter := fmt.Sprintf("%4d | ", pos.Line)
			fmt.Fprintf(r.Out, "%s%s\n", gutterColor.Sprint(gutter), line)
			pad := runewidth.StringWidth(line[:min(int(pos.Col)-1, len(line))])
			width := int(d.Primary.Len())
			if width < 1 {
				width = 1
			}
			if int(pos.Col)-1+width > len(line) {
				width = len(line) - int(pos.Col) + 1
			}
			if width < 1 {
				width = 1
			}
			fmt.Fprintf(r.Out, "%s%s%s\n",
				gutterColor.Sprint("     | "),
				strings.Repeat(" ", pad),
				sev.Sprint(strings.Repeat("^", width)))
		}
	}
	for _, n := range d.Notes {
		fmt.Fprintf(r.Out, "  %s %s\n", noteColor.Sprint("note:"), n.Msg)
	}
}

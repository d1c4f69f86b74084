package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// printer writes user-facing messages. Colors are dropped automatically when
// the output is not a terminal.
type printer struct {
	w io.Writer

	success *color.Color
	warn    *color.Color
	err     *color.Color
	path    *color.Color
	faint   *color.Color
}

func newPrinter(w io.Writer) *printer {
	return &printer{
		w:       w,
		success: color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		err:     color.New(color.FgRed, color.Bold),
		path:    color.New(color.FgCyan),
		faint:   color.New(color.FgHiBlack),
	}
}

func (p *printer) Success(format string, args ...any) {
	fmt.Fprintln(p.w, p.success.Sprintf(format, args...))
}

func (p *printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.w, p.warn.Sprintf(format, args...))
}

func (p *printer) Error(format string, args ...any) {
	fmt.Fprintln(p.w, p.err.Sprintf(format, args...))
}

func (p *printer) Println(a ...any) {
	fmt.Fprintln(p.w, a...)
}

// Path highlights a filesystem path inside a message
func (p *printer) Path(path string) string {
	return p.path.Sprint(path)
}

// Faint dims secondary text such as descriptions
func (p *printer) Faint(s string) string {
	return p.faint.Sprint(s)
}

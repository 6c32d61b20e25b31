package profile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
)

// Prompter asks questions on out and reads answers from in.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  uintptr
	tty bool
}

// NewPrompter returns a Prompter over in and out. When in is a terminal,
// AskSecret reads without echo.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{in: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(f.Fd()) {
		p.fd = f.Fd()
		p.tty = true
	}
	return p
}

// Stdio returns a Prompter on the process's stdin and stdout.
func Stdio() *Prompter {
	return NewPrompter(os.Stdin, os.Stdout)
}

// Interactive reports whether answers come from a terminal.
func (p *Prompter) Interactive() bool {
	return p.tty
}

// Ask prints prompt with defaultVal in brackets and returns the trimmed
// answer, or defaultVal for an empty line.
func (p *Prompter) Ask(prompt, defaultVal string) (string, error) {
	if defaultVal != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", prompt, defaultVal)
	} else {
		fmt.Fprintf(p.out, "%s: ", prompt)
	}
	line, err := p.readLine()
	if err != nil {
		return "", err
	}
	if line == "" {
		return defaultVal, nil
	}
	return line, nil
}

// AskBool asks a y/n question.
func (p *Prompter) AskBool(prompt string, defaultVal bool) (bool, error) {
	def := "n"
	if defaultVal {
		def = "y"
	}
	ans, err := p.Ask(prompt+" (y/n)", def)
	if err != nil {
		return false, err
	}
	ans = strings.ToLower(ans)
	return ans == "y" || ans == "yes", nil
}

// AskSecret reads a value without echo on a terminal. Piped input is read
// as a plain line.
func (p *Prompter) AskSecret(prompt string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", prompt)
	if !p.tty {
		return p.readLine()
	}
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

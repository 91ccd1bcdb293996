package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// prompter reads answers line by line from the command's input. Secrets are
// read without echo when the input is a terminal.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	tty int
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{in: bufio.NewReader(in), out: out, tty: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.tty = int(f.Fd())
	}
	return p
}

// ask prints label and returns the next input line without its newline.
func (p *prompter) ask(label string) (string, error) {
	fmt.Fprint(p.out, label)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// askSecret is ask without terminal echo.
func (p *prompter) askSecret(label string) (string, error) {
	if p.tty < 0 {
		return p.ask(label)
	}
	fmt.Fprint(p.out, label)
	b, err := term.ReadPassword(p.tty)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrompter_Ask(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader("hunter2\r\nagain"), &out)

	got, err := p.ask("Password: ")
	require.NoError(t, err)
	require.Equal(t, "hunter2", got)

	// The last line may lack a newline.
	got, err = p.ask("Confirm password: ")
	require.NoError(t, err)
	require.Equal(t, "again", got)

	_, err = p.ask("More: ")
	require.Error(t, err)
	require.Equal(t, "Password: Confirm password: More: ", out.String())
}

func TestPrompter_AskSecretFallsBackWithoutTerminal(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader("hunter2\nhunter2\n"), &out)
	require.Equal(t, -1, p.tty)

	got, err := p.askSecret("Password: ")
	require.NoError(t, err)
	require.Equal(t, "hunter2", got)

	got, err = p.askSecret("Confirm password: ")
	require.NoError(t, err)
	require.Equal(t, "hunter2", got)
}

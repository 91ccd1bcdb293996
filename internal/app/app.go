package app

import (
	"os"
	"path/filepath"
	"strings"
)

// HomeDirName is the directory under the user's home that holds client state.
const HomeDirName = ".cipherlink"

// DefaultHome returns $HOME/.cipherlink, or ./.cipherlink when no home
// directory is known.
func DefaultHome() string {
	h, err := os.UserHomeDir()
	if err != nil || h == "" {
		return HomeDirName
	}
	return filepath.Join(h, HomeDirName)
}

// ExpandHome replaces a leading "~/" in p with the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	h, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(h, strings.TrimPrefix(p, "~"))
}

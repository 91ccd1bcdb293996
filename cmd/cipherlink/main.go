package main

import (
	"context"
	"os"

	"cipherlink/cmd/cipherlink/commands"
)

func main() {
	if err := commands.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}

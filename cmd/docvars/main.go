package main

import (
	"context"
	"os"

	"git.home.luguber.info/inful/docvars/cmd/docvars/commands"
)

func main() {
	os.Exit(commands.Execute(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

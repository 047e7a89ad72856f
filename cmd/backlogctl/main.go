package main

import (
	"os"

	"github.com/backlog-dim/backlog-dim/cmd/backlogctl/cli"
)

func main() {
	os.Exit(cli.Execute())
}

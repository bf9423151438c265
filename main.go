package main

import (
	"os"

	"mcpql/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

package main

import (
	"os"

	"github.com/naveensnsgroups/ai-powered-mom/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

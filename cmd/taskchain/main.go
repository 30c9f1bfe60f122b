// Command taskchain runs a demonstration task chain.
package main

import (
	"os"

	"github.com/vnykmshr/taskchain/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

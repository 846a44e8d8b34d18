// Command gocsound renders and performs Csound pieces.
package main

import (
	"os"

	"github.com/aspect-build/csound-go/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

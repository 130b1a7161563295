// Command jsonstreamer serves a JSON document as an LLM-style stream.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/jsonstreamer/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "jsonstreamer:", err)
		os.Exit(cli.GetExitCode(err))
	}
}

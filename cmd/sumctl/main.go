package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/angelmondragon/getsum-node/internal/cli"
)

func main() {
	if err := cli.NewRootCommand(os.Stdin, os.Stdout).Execute(); err != nil {
		if !errors.Is(err, cli.ErrDecodeFailed) {
			fmt.Fprintln(os.Stderr, "sumctl:", err)
		}
		os.Exit(1)
	}
}

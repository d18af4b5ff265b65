package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophreview/internal/keygen"
)

func main() {
	opts, err := keygen.ParseOptions(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	if err := keygen.Run(opts, os.Stdin, int(os.Stdin.Fd()), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

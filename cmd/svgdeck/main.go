package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	cli := NewCLI(os.Stdout, os.Stderr)
	if err := cli.Execute(os.Args[1:]); err != nil {
		var exitErr *ExitCodeError
		if errors.As(err, &exitErr) {
			if exitErr.Err != nil {
				fmt.Fprintln(os.Stderr, cli.styles.error(exitErr.Error()))
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, cli.styles.error(err.Error()))
		os.Exit(1)
	}
}

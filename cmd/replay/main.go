package main

import (
	"fmt"
	"os"

	"github.com/ManuelReschke/BlogHub/internal/pkg/env"
)

func main() {
	env.SetupEnvFile()
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"kitchenprint/internal/cli"
)

var version = "dev"

func main() {
	app := cli.NewApp()
	if err := cli.RootCmd(app, version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

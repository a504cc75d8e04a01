package main

import (
	"os"

	"github.com/tripplanner/tripload/internal/cli"
)

func main() {
	os.Exit(cli.Main())
}

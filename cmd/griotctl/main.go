package main

import (
	"os"

	"github.com/griotdb/griot/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

package main

import (
	"github.com/satchelhq/satchel/internal/cli"
)

func main() {
	cli.Execute()
}

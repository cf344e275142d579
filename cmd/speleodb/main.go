package main

import (
	"github.com/speleodb/speleodb/cmd/speleodb/cmd"
)

func main() {
	cmd.Execute()
}

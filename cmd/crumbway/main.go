package main

import (
	"github.com/crumbway/crumbway/internal/cmd"
)

func main() {
	cmd.Execute()
}

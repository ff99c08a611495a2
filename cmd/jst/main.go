// Package main is the entry point for the jst CLI.
package main

import (
	"github.com/donaldgifford/jushuitan-go/cmd/jst/cmd"
)

func main() {
	cmd.Execute()
}

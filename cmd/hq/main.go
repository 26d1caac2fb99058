// Package main is the entry point for the hq CLI tool.
package main

import (
	"github.com/interruptlabs/header-query-bn/internal/cmd"
)

func main() {
	cmd.Execute()
}

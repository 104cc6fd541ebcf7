// The main package for the restockwatch executable.
package main

import (
	"restockwatch/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}

// The main package for the openfeeder executable.
package main

import (
	"github.com/JakeFAU/openfeeder/cmd"
)

func main() {
	cmd.Execute()
}

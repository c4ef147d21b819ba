// Package main provides blogctl, the command line companion of the blog
// stack.
package main

import (
	"os"

	"github.com/j19015/blog-stack/cmd/blogctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

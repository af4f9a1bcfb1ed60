/*
This is the entrypoint for the skew binary.
*/
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/learnedindex/skewtools/cmd"
)

func main() {
	// a .env file is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
		os.Exit(1)
	}
	rootCmd := cmd.NewRootCommand(os.Stdin, os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

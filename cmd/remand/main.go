package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/0xthrpw/remand/internal/cli"
)

func main() {
	// Local overrides for REMAND_CONFIG and REMAND_STORE; absence is fine.
	godotenv.Load(".env")

	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

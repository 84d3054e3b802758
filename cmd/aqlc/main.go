// Command aqlc compiles openEHR AQL queries to PostgreSQL.
package main

import (
	"os"

	"github.com/roach88/aqlc/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

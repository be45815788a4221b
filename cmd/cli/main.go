// jrnlyzer analyzes point-of-sale pinpad journal logs: it reconstructs
// transactions, terminal liveness, error bursts, and backend health checks
// from the raw journals and diagnoses known operational issues.
package main

import (
	"os"

	"github.com/openeps/jrnlyzer/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

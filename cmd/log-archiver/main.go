package main

import (
	"os"

	"github.com/withObsrvr/obsrvr-log-archiver/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:]))
}

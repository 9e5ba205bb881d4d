package main

import (
	"os"

	"github.com/l2verify/fault-proof/client"
	oplog "github.com/l2verify/fault-proof/log"
)

func main() {
	logger := oplog.NewLogger(os.Stdout, oplog.DefaultCLIConfig())
	client.Main(logger)
}

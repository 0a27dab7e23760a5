package main

import (
	"context"
	"fmt"
	"os"

	"dealflow-ingest/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "dealflow: %v\n", err)
		os.Exit(1)
	}
}

// Command proto2rest turns proto3 service definitions annotated with
// google.api.http into REST artifacts: net/http server scaffolding, OpenAPI
// documents, or plain route listings.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/proto2rest/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, cli.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

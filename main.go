// calltree - Call-graph renderer for Go, Python and edge-list sources.
//
// calltree scans a source tree into a call graph and draws the calls
// reachable from a set of root functions as Graphviz, Mermaid or JSON lines.
package main

import (
	"fmt"
	"os"

	"github.com/Benny93/calltree-go/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

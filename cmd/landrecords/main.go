// Command landrecords manages village land records.
package main

import "github.com/mesh-intelligence/landrecords/internal/cli"

func main() {
	cli.Execute()
}

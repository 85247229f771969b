package main

import (
	"fmt"
	"os"

	"loadgate/services/adjudicated"
)

func main() {
	if err := adjudicated.Main(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Command beakfs mounts either the forward synthesis view of a source
// tree or the reverse reconstruction view of a backing directory a
// forward mount's contents were copied into.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-errors/errors"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: beakfs <forward|reverse> ...")
	}

	var err error
	switch os.Args[1] {
	case "forward":
		err = runForward(os.Args[2:])
	case "reverse":
		err = runReverse(os.Args[2:])
	default:
		log.Fatalf("unknown subcommand %q, expected forward or reverse", os.Args[1])
	}
	if err != nil {
		if gerr, ok := err.(*errors.Error); ok {
			fmt.Fprintln(os.Stderr, gerr.ErrorStack())
		}
		log.Fatal(err)
	}
}

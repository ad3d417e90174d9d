package main

import (
	"log"

	"github.com/spec-kit/ticket-lifecycle/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"log"

	"github.com/rustlegion/ticket-bot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"github.com/rethinkdb-collector/cmd/agent"
)

func main() {
	agent.Execute()
}

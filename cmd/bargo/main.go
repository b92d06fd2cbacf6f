package main

import (
	"github.com/MeKo-Tech/bargo/cmd/bargo/cmd"
)

func main() {
	cmd.Execute()
}

package main

import (
	"stockpulse/internal/cli"
)

func main() {
	cli.Execute()
}

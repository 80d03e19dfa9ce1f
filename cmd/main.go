package main

import "github.com/tuncerburak97/gozcu/internal/cli"

func main() {
	cli.Execute()
}

package main

import "cogscreen-go/internal/cli"

func main() {
	cli.Execute()
}

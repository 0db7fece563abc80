package main

import "companion/pkg/cli"

func main() {
	cli.Execute()
}

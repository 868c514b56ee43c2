package main

import "tablebook/internal/cli"

func main() {
	cli.Execute()
}

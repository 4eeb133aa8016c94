package main

import "gametunnel/internal/cli"

func main() {
	cli.Execute()
}

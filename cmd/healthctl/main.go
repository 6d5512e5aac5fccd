package main

import "example.com/healthsync/internal/cli"

func main() {
	cli.Execute()
}

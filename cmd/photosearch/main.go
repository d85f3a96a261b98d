package main

import "photosearch/internal/cli"

func main() {
	cli.Execute()
}

package main

import "github.com/digitorus/pdfseal/cli"

func main() {
	cli.Execute()
}

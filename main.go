package main

import "github.com/a11ygate/a11ygate/internal/cli"

func main() {
	cli.Execute()
}

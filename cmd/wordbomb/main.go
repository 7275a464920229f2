package main

import "github.com/mcoot/wordbomb/internal/cli"

func main() {
	cli.Execute()
}

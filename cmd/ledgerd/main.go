package main

import "github.com/crossbank/ledgerd/internal/cli"

func main() {
	cli.Execute()
}

package main

import "github.com/LeJamon/goshardsim/internal/cli"

func main() {
	cli.Execute()
}

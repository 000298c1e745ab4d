package main

import "github.com/LavishGent/abcache/internal/cli"

func main() {
	cli.Execute()
}

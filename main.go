package main

import "github.com/fakeyudi/testgen/cmd"

func main() {
	cmd.Execute()
}

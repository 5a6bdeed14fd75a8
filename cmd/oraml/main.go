package main

import "github.com/oraide/oraml/cmd/oraml/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/glucolab/agp/cmd/agp/command"

func main() {
	command.Execute()
}

package main

import "github.com/chriserin/rulec/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/facereg/facereg/cmd"

func main() {
	cmd.Execute()
}

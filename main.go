package main

import "github.com/itsmostafa/goprobe/cmd"

func main() {
	cmd.Execute()
}

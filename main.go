package main

import "github.com/nextlevelbuilder/sessionforge/cmd"

func main() {
	cmd.Execute()
}

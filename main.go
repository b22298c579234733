package main

import "github.com/nextlevelbuilder/verina/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/nextlevelbuilder/goclaw-lite/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/nextlevelbuilder/discordlite/cmd"

func main() {
	cmd.Execute()
}

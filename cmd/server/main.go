package main

import "github.com/iliyamo/librov/cmd/server/commands"

func main() {
	commands.Execute()
}

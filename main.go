package main

import "github.com/nextlevelbuilder/chefbot/cmd"

func main() {
	cmd.Execute()
}

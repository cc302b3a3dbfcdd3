package main

import "linkdex/cmd"

func main() {
	cmd.Execute()
}

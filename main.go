package main

import "github.com/Enigma-Deez/Roll-Call/cmd"

func main() {
	cmd.Execute()
}

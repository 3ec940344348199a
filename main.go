package main

import "rew2streammagic/cmd"

func main() {
	cmd.Execute()
}

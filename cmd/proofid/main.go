package main

import "proofid/cmd/proofid/cmd"

func main() {
	cmd.Execute()
}

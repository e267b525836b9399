package main

import "github.com/Chative-core-poc-v1/researcher/cmd"

func main() {
	cmd.Execute()
}

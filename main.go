package main

import "github.com/SmooAI/logdex/cmd"

func main() {
	cmd.Execute()
}

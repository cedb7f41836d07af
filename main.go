package main

import "github.com/kiesman99/tfwgen/cmd"

func main() {
	cmd.Execute()
}

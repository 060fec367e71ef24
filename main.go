package main

import "github.com/saturnblock/pythonplantpot/cmd"

func main() {
	cmd.Execute()
}

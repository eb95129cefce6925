package main

import "github.com/uclimate/gorad/cmd"

func main() {
	cmd.Execute()
}

package main

import "fym-server/cmd"

func main() {
	cmd.Execute()
}

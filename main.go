package main

import "github.com/mpapenbr/trackline/cmd"

func main() {
	cmd.Execute()
}

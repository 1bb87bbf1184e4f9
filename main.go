package main

import "github.com/curaious/ors/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/anchore/forbiddenapis/cmd"

func main() {
	cmd.Execute()
}

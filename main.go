package main

import "github.com/safefind/safefind/cmd"

func main() {
	cmd.Execute()
}

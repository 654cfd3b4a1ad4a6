package main

import "nightreel/cmd"

func main() {
	cmd.Execute()
}

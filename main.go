package main

import "library-tracking/cmd"

func main() {
	cmd.Execute()
}

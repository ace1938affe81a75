package main

import "github.com/deskworks/dashboard/cmd/dashboard/cmd"

func main() {
	cmd.Execute()
}

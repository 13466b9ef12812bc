package main

import "github.com/khanhnv2901/netguard/cmd"

var execCmd = cmd.Execute

func main() {
	execCmd()
}

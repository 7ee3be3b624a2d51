package main

import "github.com/rlm-runtime/rlm/cmd"

func main() {
	cmd.Execute()
}

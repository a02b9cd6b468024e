package main

import "prp-proof/cmd/prpverify/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/dhjs0000/QERC/cmd/qerc/cmd"

func main() {
	cmd.Execute()
}

package main

import (
	"github.com/jeremyhahn/go-localca/cmd"
)

func main() {
	cmd.Execute()
}

package main

import (
	"github.com/quickserve/expo/cmd"
)

func main() {
	cmd.Execute()
}

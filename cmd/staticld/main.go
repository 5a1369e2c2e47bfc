package main

import (
	"github.com/Manu343726/staticld/cmd"
)

func main() {
	cmd.Execute()
}

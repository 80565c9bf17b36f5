package main

import (
	"os"

	"github.com/kubesage/kubesage/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}

// Copyright © 2019 One Concern

package main

import (
	"github.com/ccsi/dmflite/cmd/dmflite/cmd"
)

func main() {
	cmd.Execute()
}

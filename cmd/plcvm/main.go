package main

import (
	"go.brendoncarroll.net/star"

	"plcvm.org/plcvm/plccmd"
)

func main() {
	star.Main(plccmd.Root())
}

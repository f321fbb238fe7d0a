package main

import (
	"contribsampler/cmd/contribsampler/commands"
	"contribsampler/lib/osutil"
)

func main() {
	ctx := osutil.SignalContext()
	err := commands.Execute(ctx)
	if err != nil {
		osutil.Fatal("contribsampler failed", err)
	}
}

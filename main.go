package main

import "github.com/zinc-sig/easysweep/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/MeKo-Tech/morpho/cmd/morpho/cmd"

func main() {
	cmd.Execute()
}

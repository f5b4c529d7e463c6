package main

import "github.com/Yates-Labs/reviewlens/cmd"

func main() {
	cmd.Execute()
}

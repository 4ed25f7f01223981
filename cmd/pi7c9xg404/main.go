package main

import "github.com/OpenTraceLab/pi7c9xg404/cmd/pi7c9xg404/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/example/srt-reserver/cmd"

func main() {
	cmd.Execute()
}

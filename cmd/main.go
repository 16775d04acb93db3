package main

import "github.com/voicegate/voicegate"

func main() {
	voicegate.Main()
}

package main

import "github.com/Bekzhanizb/LifeQuestBackend/cmd"

func main() {
	cmd.Execute()
}

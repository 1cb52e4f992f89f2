package main

import "github.com/AlexM1010/FollowWeb-sub000/cmd"

func main() {
	cmd.Execute()
}

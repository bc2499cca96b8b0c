package main

import "github.com/timvw/shapeqa/cmd"

func main() {
	cmd.Execute()
}

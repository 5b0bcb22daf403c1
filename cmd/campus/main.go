package main

import "github.com/emilythestrangee/campus/backend/internal/cli"

func main() {
	cli.Execute()
}

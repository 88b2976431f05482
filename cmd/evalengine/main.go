package main

import "github.com/flowschema/evalengine/pkg/cmd"

func main() {
	cmd.Execute()
}

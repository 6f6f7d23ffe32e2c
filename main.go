package main

import "github.com/ValentinKolb/planet/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/MeKo-Tech/brandscan/cmd/brandscan/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/lotview/inventory-crawler/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/pfrederiksen/weather-scrape/internal/cli"

func main() {
	cli.Execute()
}

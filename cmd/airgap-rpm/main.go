package main

import "github.com/alsamasu/airgapped-rpm-repo-lite/internal/cli"

func main() {
	cli.Execute()
}

package main

import "github.com/AugustoL/openscan/internal/cli"

func main() {
	cli.Execute()
}

package main

import "github.com/goplus/llarcfg/cmd/llarcfg/internal"

func main() {
	internal.Execute()
}

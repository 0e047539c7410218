// huematch - hijab colour recommendations from outfit photos
//
// huematch extracts the dominant colours of a photo and ranks a catalog of
// hijab colours against them.
//
// Copyright (c) 2025 John Mylchreest
// Licensed under the MIT License
package main

import (
	"github.com/jmylchreest/huematch/internal/cli"
)

func main() {
	cli.Execute()
}

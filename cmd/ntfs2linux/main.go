package main

import (
	"github.com/ntfs2linux/ntfs2linux/internal/cmd"
)

func main() {
	cmd.Execute()
}

package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	var root = &cobra.Command{Use: "memochat"}

	root.AddCommand(serveCMD(), migrateCMD())
	_ = root.Execute()
}

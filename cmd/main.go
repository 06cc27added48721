package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/XeTute/Synthetic-Data-Generation/internal/cli"
)

func main() {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	if len(os.Args) > 1 && os.Args[1] == "generate" {
		fmt.Println()
		fmt.Println(green("  ███████╗██████╗  ██████╗ "))
		fmt.Println(green("  ██╔════╝██╔══██╗██╔════╝ "))
		fmt.Println(green("  ███████╗██║  ██║██║  ███╗"))
		fmt.Println(green("  ╚════██║██║  ██║██║   ██║"))
		fmt.Println(green("  ███████║██████╔╝╚██████╔╝"))
		fmt.Println(green("  ╚══════╝╚═════╝  ╚═════╝ "))
		fmt.Println()
	}

	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("✗"), err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"debtease/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "debtease:", err)
		os.Exit(1)
	}
}

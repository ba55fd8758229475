// Command snoozies はSnooziesのAPIサーバー、取り込みワーカー、運用コマンドを起動する。
package main

import (
	"fmt"
	"os"

	"github.com/snoozies/dreamyhaven/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Command check_pages compares the page counts of a source PDF and its
// translation and flags translations that lost a large share of pages.
//
// Usage:
//
//	go run ./cmd/check_pages <original.pdf> <translated.pdf>
package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"

	"doc-translator/internal/renderer"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: check_pages <original.pdf> <translated.pdf>")
		fmt.Println()
		fmt.Printf("Warns when the translation has more than %.0f%% fewer pages than the original.\n",
			renderer.PageCountThreshold*100)
		os.Exit(1)
	}
	os.Exit(run(afero.NewOsFs(), os.Args[1], os.Args[2]))
}

func run(fs afero.Fs, originalPath, translatedPath string) int {
	fmt.Printf("Comparing page counts...\n")
	fmt.Printf("  Original:   %s\n", originalPath)
	fmt.Printf("  Translated: %s\n\n", translatedPath)

	result, err := renderer.CheckPageCountDifference(fs, originalPath, translatedPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}
	fmt.Println(result)
	if result.IsSuspicious {
		return 2
	}
	return 0
}

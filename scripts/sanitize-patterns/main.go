package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/grez-lucas/chase-scraper/internal/scraper/bank"
	banktest "github.com/grez-lucas/chase-scraper/internal/scraper/bank/testutil"
	"github.com/grez-lucas/chase-scraper/internal/scraper/testutil"
)

func main() {
	bankCode := flag.String("bank", string(bank.BankChase), "Bank code")
	dryRun := flag.Bool("dry-run", false, "Show what would be changed without modifying files")
	flag.Parse()

	if *bankCode == "" {
		fmt.Println("Usage: go run main.go [-bank=chase] [--dry-run]")
		os.Exit(1)
	}

	fixturesDir := filepath.Dir(banktest.FixturePath(*bankCode, "x"))

	files, err := filepath.Glob(filepath.Join(fixturesDir, "*.html"))
	if err != nil || len(files) == 0 {
		fmt.Printf("No HTML files found in %s\n", fixturesDir)
		os.Exit(1)
	}

	fmt.Printf("🔒 Sanitizing fixtures for %s\n", *bankCode)
	if *dryRun {
		fmt.Println("    (DRY RUN - no files will be modified)")
	}
	fmt.Println()

	for _, file := range files {
		sanitizeFile(file, *dryRun)
	}

	fmt.Println()
	fmt.Println("✅ Sanitization complete!")
	if *dryRun {
		fmt.Println("    Run without --dry-run to apply changes")
	}
}

func sanitizeFile(path string, dryRun bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("❌ Error reading %s: %v\n", path, err)
		return
	}

	original := string(content)
	sanitized, found := testutil.SanitizeHTML(original)

	filename := filepath.Base(path)

	if sanitized == original {
		fmt.Printf("📄 %s: No sensitive data found\n", filename)
		return
	}

	fmt.Printf("📄 %s: Found sensitive data\n", filename)
	fmt.Printf("  - %s\n", strings.Join(found, ", "))

	// Check if we should write to the original file
	if !dryRun {
		if err := os.WriteFile(path, []byte(sanitized), 0o644); err != nil {
			fmt.Printf("    ❌ Error writing %s: %v\n ", path, err)
		} else {
			fmt.Println("    ✅ Sanitized and saved")
		}
	}
}

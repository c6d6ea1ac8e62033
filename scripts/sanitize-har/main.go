// sanitize-har removes sensitive data from HAR files before committing.
//
// Usage:
//
//	go run ./scripts/sanitize-har/main.go -scenario=session
//	go run ./scripts/sanitize-har/main.go -input=recording.har -output=sanitized.har.json
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/grez-lucas/chase-scraper/internal/scraper/bank"
	banktest "github.com/grez-lucas/chase-scraper/internal/scraper/bank/testutil"
	"github.com/grez-lucas/chase-scraper/internal/scraper/testutil"
)

func main() {
	bankCode := flag.String("bank", string(bank.BankChase), "Bank code")
	scenario := flag.String("scenario", "", "Recording under testdata/recordings, sanitized in place (e.g., session)")
	inputPath := flag.String("input", "", "Input HAR file path (Chrome DevTools export or our own format)")
	outputPath := flag.String("output", "", "Output HAR file path (defaults to input path)")
	dryRun := flag.Bool("dry-run", false, "List what would be redacted without writing")
	flag.Parse()

	inPath := *inputPath
	if *scenario != "" {
		inPath = banktest.RecordingPath(*bankCode, *scenario)
	}
	if inPath == "" {
		fmt.Println("Usage:")
		fmt.Println("  go run ./scripts/sanitize-har/main.go -scenario=session [-dry-run]")
		fmt.Println("  go run ./scripts/sanitize-har/main.go -input=in.har [-output=out.har.json] [-dry-run]")
		os.Exit(1)
	}
	outPath := inPath
	if *outputPath != "" {
		outPath = *outputPath
	}

	har, err := testutil.LoadHAR(inPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d entries from %s\n", len(har.Entries), inPath)

	sanitized := testutil.SanitizeHAR(har)

	total := 0
	for i := range har.Entries {
		found := redactions(har.Entries[i], sanitized.Entries[i])
		total += len(found)
		if !*dryRun || len(found) == 0 {
			continue
		}
		req := har.Entries[i].Request
		fmt.Printf("\n#%d %s %s\n", i+1, req.Method, truncate(req.URL, 80))
		for _, what := range found {
			fmt.Printf("  - %s\n", what)
		}
	}
	fmt.Printf("\n🔒 %d values redacted\n", total)

	if *dryRun {
		fmt.Println("[DRY RUN] No changes written.")
		return
	}
	if err := testutil.SaveHAR(outPath, sanitized); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Sanitized HAR saved to: %s\n", outPath)
}

// redactions lists what differs between an entry and its sanitized copy.
func redactions(before, after testutil.HAREntry) []string {
	var found []string
	if before.Request.URL != after.Request.URL {
		found = append(found, "query parameters")
	}
	found = append(found, headerChanges("request", before.Request.Headers, after.Request.Headers)...)
	if before.Request.Body != after.Request.Body {
		found = append(found, "request body")
	}
	found = append(found, headerChanges("response", before.Response.Headers, after.Response.Headers)...)
	if before.Response.Content.Text != after.Response.Content.Text {
		_, kinds := testutil.SanitizeHTML(before.Response.Content.Text)
		found = append(found, fmt.Sprintf("response body %v", kinds))
	}
	return found
}

func headerChanges(side string, before, after []testutil.HARHeader) []string {
	var found []string
	for i, h := range before {
		if i < len(after) && h.Value != after[i].Value {
			found = append(found, fmt.Sprintf("%s header %s", side, h.Name))
		}
	}
	return found
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

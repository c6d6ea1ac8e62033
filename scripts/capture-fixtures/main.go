// capture-fixtures opens a visible, stealth-patched Chrome and saves the
// mobile banking pages you walk through as HTML fixtures with screenshots.
//
// Usage:
//
//	go run ./scripts/capture-fixtures/main.go
//	go run ./scripts/capture-fixtures/main.go -output=/tmp/fixtures -chrome=/usr/bin/google-chrome
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"github.com/grez-lucas/chase-scraper/internal/scraper/bank/chase"
	"github.com/grez-lucas/chase-scraper/internal/scraper/browser"
)

// Pages to capture, in the order a session reaches them
var capturePages = []PageCapture{
	{Name: "login_page", Instructions: "Open the log on page (don't log on yet)"},
	{Name: "login_error", Instructions: "Enter INVALID credentials and submit"},
	{Name: "otp_request", Instructions: "Log on with VALID credentials; capture the device activation page if shown (or skip)"},
	{Name: "accounts", Instructions: "Open the accounts list"},
	{Name: "transactions_debit_1", Instructions: "Open a checking account's history"},
	{Name: "transactions_debit_2", Instructions: "Follow the Next link to the second history page (or skip)"},
	{Name: "transactions_credit", Instructions: "Open a credit card's history"},
	{Name: "payment_options", Instructions: "Start a credit card payment, stop on the amount page (DON'T submit)"},
	{Name: "transfer_details", Instructions: "Start a transfer, stop on the details page (DON'T submit)"},
	{Name: "announcement", Instructions: "Open an announcement interstitial if one appears (or skip)"},
}

type PageCapture struct {
	Name         string
	Instructions string
}

func main() {
	outputDir := flag.String("output", "", "Output directory (default: internal/scraper/bank/chase/testdata/fixtures)")
	chromeBin := flag.String("chrome", "", "Chrome binary (default: let Rod find or download one)")
	startURL := flag.String("url", chase.DefaultBaseURL+chase.PathLogOn, "Page to open first")
	flag.Parse()

	outDir := *outputDir
	if outDir == "" {
		outDir = filepath.Join("internal", "scraper", "bank", "chase", "testdata", "fixtures")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Printf("Error creating directory: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("╔════════════════════════════════════════════════════════════════╗")
	fmt.Println("║           CHASE FIXTURE CAPTURE TOOL                           ║")
	fmt.Println("╠════════════════════════════════════════════════════════════════╣")
	fmt.Printf("║  Output: %-52s  ║\n", outDir)
	fmt.Println("╚════════════════════════════════════════════════════════════════╝")
	fmt.Println()

	// Launch visible browser
	l := launcher.New().
		Headless(false).
		// Hide the automation flags the portal fingerprints
		Set("disable-blink-features", "AutomationControlled").
		Set("exclude-switches", "enable-automation").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("window-size", "414,896").
		Devtools(false)
	if *chromeBin != "" {
		l = l.Bin(*chromeBin)
	}

	b := rod.New().
		ControlURL(l.MustLaunch()).
		MustConnect()
	defer b.MustClose()

	page := stealth.MustPage(b)
	page.MustNavigate(*startURL)

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("📋 Instructions:")
	fmt.Println("   - A browser window has opened on the log on page")
	fmt.Println("   - Follow the prompts below")
	fmt.Println("   - Press ENTER after completing each step")
	fmt.Println("   - Type 'skip' to skip a page")
	fmt.Println("   - Type 'quit' to exit")
	fmt.Println()

	for _, capture := range capturePages {
		fmt.Println("────────────────────────────────────────────────────────────────")
		fmt.Printf("📄 Capturing: %s.html\n", capture.Name)
		fmt.Printf("📝 Instructions: %s\n", capture.Instructions)
		fmt.Print("   Press ENTER when ready (or 'skip'/'quit'): ")

		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(strings.ToLower(input))

		if input == "quit" {
			fmt.Println("\n👋 Exiting...")
			break
		}
		if input == "skip" {
			fmt.Printf("   ⏭️  Skipped %s\n\n", capture.Name)
			continue
		}

		if err := capturePage(page, outDir, capture.Name); err != nil {
			fmt.Printf("   ❌ %v\n\n", err)
			continue
		}
	}

	saveMetadata(outDir)

	fmt.Println("════════════════════════════════════════════════════════════════")
	fmt.Println("✅ Capture complete!")
	fmt.Println()
	fmt.Println("⚠️  IMPORTANT: Sanitize sensitive data before committing!")
	fmt.Println("   Run: go run ./scripts/sanitize-patterns/main.go -bank=chase")
	fmt.Println("════════════════════════════════════════════════════════════════")
}

func capturePage(page *rod.Page, outDir, name string) error {
	// 1. Let the page settle
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait for page load: %w", err)
	}
	time.Sleep(1 * time.Second)

	// 2. Screenshot for visual reference
	screenshotPath := filepath.Join(outDir, name+".png")
	if buf, err := page.Screenshot(false, nil); err != nil {
		fmt.Printf("   ⚠️  Screenshot failed: %v\n", err)
	} else if err := os.WriteFile(screenshotPath, buf, 0o644); err != nil {
		fmt.Printf("   ⚠️  Error saving screenshot: %v\n", err)
	} else {
		fmt.Printf("   📸 Screenshot: %s\n", screenshotPath)
	}

	// 3. HTML without the auto-logout refresh, so the fixture parses the way
	// the scraper sees the page
	html, err := page.HTML()
	if err != nil {
		return fmt.Errorf("capture HTML: %w", err)
	}
	html = browser.StripMetaRefresh(html)

	htmlPath := filepath.Join(outDir, name+".html")
	if err := os.WriteFile(htmlPath, []byte(html), 0o644); err != nil {
		return fmt.Errorf("save HTML: %w", err)
	}

	fmt.Printf("   ✅ Saved: %s\n", htmlPath)
	fmt.Printf("   🔗 URL: %s\n\n", page.MustInfo().URL)
	return nil
}

func saveMetadata(outDir string) {
	metadata := fmt.Sprintf(`# Fixture Metadata
bank: chase
site: %s
captured_at: %s
captured_by: %s

## Files
See .html files in this directory.
Screenshots (.png) provided for visual reference.

Meta refresh tags are stripped at capture time; the portal uses them to
log the session off.

## Notes
- These fixtures should be sanitized before committing
- Update when the portal changes
- Re-run capture if tests start failing
`, chase.DefaultBaseURL, time.Now().Format(time.RFC3339), os.Getenv("USER"))

	metaPath := filepath.Join(outDir, "README.md")
	if err := os.WriteFile(metaPath, []byte(metadata), 0o644); err != nil {
		fmt.Printf("⚠️  Error saving metadata: %v\n", err)
	}
}

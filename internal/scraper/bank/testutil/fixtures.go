package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// bankDir is internal/scraper/bank/<bankCode>, located from this file so
// tests in any package find the same testdata.
func bankDir(bankCode string) string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filepath.Dir(filename)), bankCode)
}

// FixturePath is where the saved page name lives for the given bank.
func FixturePath(bankCode, name string) string {
	return filepath.Join(bankDir(bankCode), "testdata", "fixtures", name+".html")
}

// RecordingPath is where the HAR recording name lives for the given bank.
func RecordingPath(bankCode, name string) string {
	return filepath.Join(bankDir(bankCode), "testdata", "recordings", name+".har.json")
}

// LoadFixture reads an HTML fixture file for the given bank
func LoadFixture(t *testing.T, bankCode, name string) string {
	t.Helper()

	data, err := os.ReadFile(FixturePath(bankCode, name))
	if err != nil {
		t.Fatalf("Failed to load fixture %s/%s: %v", bankCode, name, err)
	}
	return string(data)
}

package chase

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/grez-lucas/chase-scraper/internal/scraper/bank"
	"github.com/grez-lucas/chase-scraper/internal/scraper/browser"
)

// CheckPage reports the portal's coaching banner as an ApplicationError.
// Banners linking to an announcement are promotional and ignored.
func CheckPage(page *browser.Page) error {
	coaching := page.Doc.Find(SelectorCoaching).First()
	if coaching.Length() == 0 {
		return nil
	}

	if strings.HasSuffix(coaching.AttrOr("href", ""), AnnouncementSuffix) {
		return nil
	}

	return &bank.ApplicationError{Message: browser.Text(coaching)}
}

// checkStatus maps HTTP failures to ErrRequestFailed. The portal reports
// application problems with 200 OK, so only transport-level refusals land
// here.
func checkStatus(page *browser.Page) error {
	switch code := page.StatusCode; {
	case code == http.StatusForbidden:
		return fmt.Errorf("%w: access forbidden (%d) - possible bot detection", bank.ErrRequestFailed, code)
	case code == http.StatusTooManyRequests, code == http.StatusServiceUnavailable:
		return fmt.Errorf("%w: service unavailable or rate limited (%d)", bank.ErrRequestFailed, code)
	case code >= http.StatusBadRequest:
		return fmt.Errorf("%w: %s returned %d", bank.ErrRequestFailed, page.URL, code)
	}
	return nil
}

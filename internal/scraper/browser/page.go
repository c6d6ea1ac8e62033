// Package browser provides the synthetic browser the bank scrapers drive:
// fetching pages, reading links and forms out of them and submitting forms,
// backed either by a plain HTTP client or by a real Chrome through Rod.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	ErrLinkNotFound    = errors.New("link not found")
	ErrFormNotFound    = errors.New("form not found")
	ErrControlNotFound = errors.New("form control not found")
)

// Browser is the transport capability the scrapers are written against.
// Implementations keep their own cookie state between calls and never follow
// HTML meta refreshes: the caller controls all navigation.
type Browser interface {
	Get(ctx context.Context, rawURL string) (*Page, error)
	Post(ctx context.Context, rawURL string, form url.Values) (*Page, error)

	Cookies() ([]Cookie, error)
	SetCookies(cookies []Cookie) error

	Close() error
}

// Page is a fetched HTML document.
type Page struct {
	URL        *url.URL
	StatusCode int
	HTML       string
	Doc        *goquery.Document
}

// Link is an anchor with its text normalized and its href made absolute.
type Link struct {
	Text string
	Href string
}

func NewPage(pageURL *url.URL, statusCode int, content string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse html from %s: %w", pageURL, err)
	}

	return &Page{
		URL:        pageURL,
		StatusCode: statusCode,
		HTML:       content,
		Doc:        doc,
	}, nil
}

// Resolve makes href absolute against the page URL.
func (p *Page) Resolve(href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href %q: %w", href, err)
	}
	if p.URL == nil {
		return ref.String(), nil
	}
	return p.URL.ResolveReference(ref).String(), nil
}

func (p *Page) Contains(s string) bool {
	return strings.Contains(p.HTML, s)
}

func (p *Page) HasElement(selector string) bool {
	return p.Doc.Find(selector).Length() > 0
}

// Links returns every anchor carrying an href, in document order.
func (p *Page) Links() []Link {
	var links []Link
	p.Doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, err := p.Resolve(a.AttrOr("href", ""))
		if err != nil {
			return
		}
		links = append(links, Link{Text: CollapseSpace(Text(a)), Href: href})
	})
	return links
}

// LinkContaining returns the first link whose text contains substr.
func (p *Page) LinkContaining(substr string) (Link, error) {
	for _, link := range p.Links() {
		if strings.Contains(link.Text, substr) {
			return link, nil
		}
	}
	return Link{}, fmt.Errorf("%w: text containing %q", ErrLinkNotFound, substr)
}

// LinkExact returns the first link whose visible text is exactly text.
func (p *Page) LinkExact(text string) (Link, error) {
	for _, link := range p.Links() {
		if link.Text == text {
			return link, nil
		}
	}
	return Link{}, fmt.Errorf("%w: text %q", ErrLinkNotFound, text)
}

// LinkMatching returns the first link whose absolute href matches re.
func (p *Page) LinkMatching(re *regexp.Regexp) (Link, error) {
	for _, link := range p.Links() {
		if re.MatchString(link.Href) {
			return link, nil
		}
	}
	return Link{}, fmt.Errorf("%w: href matching %s", ErrLinkNotFound, re)
}

func (p *Page) FormByID(id string) (*Form, error) {
	sel := p.Doc.Find("form").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.AttrOr("id", "") == id
	})
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: id %q", ErrFormNotFound, id)
	}
	return p.newForm(sel.First())
}

// FormByAction returns the first form whose resolved action path ends with
// path.
func (p *Page) FormByAction(path string) (*Form, error) {
	var found *goquery.Selection
	p.Doc.Find("form").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		action, err := p.Resolve(s.AttrOr("action", ""))
		if err != nil {
			return true
		}
		u, err := url.Parse(action)
		if err != nil {
			return true
		}
		if strings.HasSuffix(strings.TrimSuffix(u.Path, "/"), strings.TrimSuffix(path, "/")) {
			found = s
			return false
		}
		return true
	})
	if found == nil {
		return nil, fmt.Errorf("%w: action %q", ErrFormNotFound, path)
	}
	return p.newForm(found)
}

// FormWithControl returns the first form holding a control named name.
func (p *Page) FormWithControl(name string) (*Form, error) {
	var found *goquery.Selection
	p.Doc.Find("form").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Find(controlSelector).FilterFunction(func(_ int, c *goquery.Selection) bool {
			return c.AttrOr("name", "") == name
		}).Length() > 0 {
			found = s
			return false
		}
		return true
	})
	if found == nil {
		return nil, fmt.Errorf("%w: no form holds control %q", ErrFormNotFound, name)
	}
	return p.newForm(found)
}

// --- TEXT UTILITIES ---

var innerWhitespace = regexp.MustCompile(`\s+`)

// CollapseSpace condenses runs of whitespace into a single space and trims
// the result.
func CollapseSpace(s string) string {
	return strings.TrimSpace(innerWhitespace.ReplaceAllString(s, " "))
}

// Text joins every text node under sel with single spaces and trims the
// result. Unlike Selection.Text, adjacent elements never run together.
func Text(sel *goquery.Selection) string {
	var parts []string
	for _, n := range sel.Nodes {
		collectText(n, &parts)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func collectText(node *html.Node, parts *[]string) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		*parts = append(*parts, node.Data)
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, parts)
	}
}

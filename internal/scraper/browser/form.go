package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const controlSelector = "input, select, textarea, button"

// Form is a detached copy of an HTML form's controls. Setting values never
// touches the page it came from.
type Form struct {
	ID     string
	Action string
	Method string

	controls []*control
}

type control struct {
	name    string
	kind    string
	value   string
	checked bool
}

func (c *control) isButton() bool {
	switch c.kind {
	case "submit", "button", "image", "reset":
		return true
	}
	return false
}

func (c *control) isCheckable() bool {
	return c.kind == "radio" || c.kind == "checkbox"
}

func (p *Page) newForm(sel *goquery.Selection) (*Form, error) {
	action, err := p.Resolve(sel.AttrOr("action", ""))
	if err != nil {
		return nil, fmt.Errorf("form action: %w", err)
	}

	method := strings.ToUpper(strings.TrimSpace(sel.AttrOr("method", "")))
	if method == "" {
		method = http.MethodGet
	}

	f := &Form{
		ID:     sel.AttrOr("id", ""),
		Action: action,
		Method: method,
	}

	sel.Find(controlSelector).Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		if _, disabled := s.Attr("disabled"); disabled {
			return
		}

		c := &control{name: name}
		switch goquery.NodeName(s) {
		case "select":
			c.kind = "select"
			opt := s.Find("option[selected]").First()
			if opt.Length() == 0 {
				opt = s.Find("option").First()
			}
			c.value = opt.AttrOr("value", strings.TrimSpace(opt.Text()))
		case "textarea":
			c.kind = "textarea"
			c.value = s.Text()
		case "button":
			c.kind = strings.ToLower(s.AttrOr("type", "submit"))
			c.value = s.AttrOr("value", "")
		default:
			c.kind = strings.ToLower(s.AttrOr("type", "text"))
			c.value = s.AttrOr("value", "")
			if c.isCheckable() {
				if c.value == "" {
					c.value = "on"
				}
				_, c.checked = s.Attr("checked")
			}
		}
		f.controls = append(f.controls, c)
	})

	return f, nil
}

// HasControl reports whether the form holds a control named name.
func (f *Form) HasControl(name string) bool {
	for _, c := range f.controls {
		if c.name == name {
			return true
		}
	}
	return false
}

// Set fills the first value-carrying control named name.
func (f *Form) Set(name, value string) error {
	for _, c := range f.controls {
		if c.name == name && !c.isButton() && !c.isCheckable() {
			c.value = value
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrControlNotFound, name)
}

// SelectRadio checks the radio button named name carrying value and unchecks
// its siblings.
func (f *Form) SelectRadio(name, value string) error {
	var target *control
	for _, c := range f.controls {
		if c.name == name && c.kind == "radio" && c.value == value {
			target = c
			break
		}
	}
	if target == nil {
		return fmt.Errorf("%w: radio %q with value %q", ErrControlNotFound, name, value)
	}

	for _, c := range f.controls {
		if c.name == name && c.kind == "radio" {
			c.checked = false
		}
	}
	target.checked = true
	return nil
}

// Values encodes the form as a browser would when button is clicked. An empty
// button submits without any submit control.
func (f *Form) Values(button string) (url.Values, error) {
	values := url.Values{}
	clicked := button == ""

	for _, c := range f.controls {
		switch {
		case c.isButton():
			if !clicked && c.name == button {
				values.Add(c.name, c.value)
				clicked = true
			}
		case c.isCheckable():
			if c.checked {
				values.Add(c.name, c.value)
			}
		default:
			values.Add(c.name, c.value)
		}
	}

	if !clicked {
		return nil, fmt.Errorf("%w: submit control %q", ErrControlNotFound, button)
	}
	return values, nil
}

// Submit sends the form through b as if button had been clicked.
func Submit(ctx context.Context, b Browser, f *Form, button string) (*Page, error) {
	values, err := f.Values(button)
	if err != nil {
		return nil, err
	}

	if f.Method != http.MethodGet {
		return b.Post(ctx, f.Action, values)
	}

	u, err := url.Parse(f.Action)
	if err != nil {
		return nil, fmt.Errorf("form action %q: %w", f.Action, err)
	}
	u.RawQuery = values.Encode()
	return b.Get(ctx, u.String())
}

package watch

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Reason strings reported alongside each verdict. They are part of the
// one-line stdout contract, so automation can match on them.
const (
	ReasonOutOfStock      = "out of stock text found"
	ReasonNoControl       = "no add-to-cart control found"
	ReasonControlDisabled = "add-to-cart control disabled"
	ReasonOptionRequired  = "required option not selected"
	ReasonControlEnabled  = "add-to-cart control present and enabled"
	ReasonUnparseable     = "unable to parse page"
	ReasonSoldOut         = "sold out text found"
	ReasonVariantGone     = "variant marked unavailable"
)

// addToCartSelectors are tried in order until one yields elements. They cover
// the naming conventions storefronts commonly use for the purchase control.
var addToCartSelectors = []string{
	`button[name="add-to-cart"]`,
	`button[data-action*="add-to-cart"]`,
	`button.add-to-cart`,
	`button[class*="add-to-cart"]`,
	`button[class*="addtocart"]`,
	`input[name="add-to-cart"]`,
	`a[class*="add-to-cart"]`,
}

// rule is one entry in the ordered heuristic list. A matching rule yields
// NOT_BUYABLE with the rule's reason; the first match wins.
type rule struct {
	reason string
	match  func(p *pageView) bool
}

// Classifier turns raw product page markup into a Verdict by evaluating an
// ordered list of heuristics. The rule order is fixed so it stays auditable
// and testable.
type Classifier struct {
	rules []rule
}

// NewClassifier builds a classifier for the given storefront profile.
func NewClassifier(profile Profile) *Classifier {
	rules := profile.rules()
	rules = append(rules, genericRules()...)
	return &Classifier{rules: rules}
}

// Classify derives the availability verdict for one page. Empty or
// unparseable markup fails closed: it never reports BUYABLE on input it
// cannot understand.
func (c *Classifier) Classify(page Page) Verdict {
	view, ok := parsePage(page)
	if !ok {
		return Verdict{Status: StatusNotBuyable, Reason: ReasonUnparseable}
	}
	for _, r := range c.rules {
		if r.match(view) {
			return Verdict{Status: StatusNotBuyable, Reason: r.reason}
		}
	}
	return Verdict{Status: StatusBuyable, Reason: ReasonControlEnabled}
}

func genericRules() []rule {
	return []rule{
		{
			reason: ReasonOutOfStock,
			match: func(p *pageView) bool {
				return strings.Contains(p.text, "out of stock")
			},
		},
		{
			reason: ReasonNoControl,
			match: func(p *pageView) bool {
				return !p.control().found
			},
		},
		{
			reason: ReasonControlDisabled,
			match: func(p *pageView) bool {
				return p.control().disabled
			},
		},
		{
			reason: ReasonOptionRequired,
			match: func(p *pageView) bool {
				return strings.Contains(p.text, "please select the product option")
			},
		},
	}
}

// pageView is the parsed form of one page shared by all rules. The control
// lookup is cached because consecutive rules ask about the same element.
type pageView struct {
	url  *url.URL
	raw  string
	text string
	doc  *goquery.Document
	ctl  *controlState
}

// controlState describes the add-to-cart control, if any was found.
type controlState struct {
	found    bool
	disabled bool
}

func parsePage(page Page) (*pageView, bool) {
	if len(bytes.TrimSpace(page.Body)) == 0 {
		return nil, false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, false
	}
	// An unparseable watch URL only disables URL-derived rules; absence of
	// attributes or query parameters is never an error here.
	pageURL, err := url.Parse(page.URL)
	if err != nil {
		pageURL = nil
	}
	return &pageView{
		url:  pageURL,
		raw:  string(page.Body),
		text: strings.ToLower(doc.Text()),
		doc:  doc,
	}, true
}

func (p *pageView) control() controlState {
	if p.ctl == nil {
		state := findControl(p.doc)
		p.ctl = &state
	}
	return *p.ctl
}

func findControl(doc *goquery.Document) controlState {
	for _, sel := range addToCartSelectors {
		matches := doc.Find(sel)
		if matches.Length() == 0 {
			continue
		}
		state := controlState{found: true}
		matches.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if elementDisabled(s) {
				state.disabled = true
				return false
			}
			return true
		})
		return state
	}

	// No selector hit; fall back to matching controls by their visible text.
	var state controlState
	doc.Find("button, input, a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !looksLikeAddToCart(s) {
			return true
		}
		state = controlState{found: true, disabled: elementDisabled(s)}
		return false
	})
	return state
}

func looksLikeAddToCart(s *goquery.Selection) bool {
	if strings.Contains(strings.ToLower(s.Text()), "add to cart") {
		return true
	}
	if goquery.NodeName(s) == "input" {
		return strings.Contains(strings.ToLower(s.AttrOr("value", "")), "cart")
	}
	return false
}

func elementDisabled(s *goquery.Selection) bool {
	if _, ok := s.Attr("disabled"); ok {
		return true
	}
	return strings.EqualFold(s.AttrOr("aria-disabled", ""), "true")
}

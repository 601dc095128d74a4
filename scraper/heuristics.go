package scraper

import (
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/dealscout/dealscout/models"
)

// itemSelectors are the class/attribute conventions commonly used for item
// listings, in match-priority order. Compiled once at init.
var itemSelectors []cascadia.Sel

var itemSelectorSources = []string{
	`[data-qa='menu-item']`,
	`[data-test='menu-item']`,
	`.menu-item`,
	`.menu__item`,
	`.product`,
	`[class*='MenuItem']`,
}

func init() {
	for _, src := range itemSelectorSources {
		sel, err := cascadia.Parse(src)
		if err != nil {
			panic("scraper: bad item selector " + src + ": " + err.Error())
		}
		itemSelectors = append(itemSelectors, sel)
	}
}

var (
	reTitleClass  = regexp.MustCompile(`(?i)title|name`)
	reDollarPrice = regexp.MustCompile(`\$?\s*(\d+(?:\.\d{1,2})?)`)
	rePriceToken  = regexp.MustCompile(`\s*\$?\d+(?:\.\d{1,2})?\s*`)
	reMultiSpace  = regexp.MustCompile(`\s{2,}`)
)

// boilerplate are non-item strings the chains put in item-shaped markup.
var boilerplate = map[string]bool{
	"menu":       true,
	"learn more": true,
	"order now":  true,
}

// parseHeuristics scans candidate DOM regions by class-name convention and
// extracts a name (label attribute, or nearest heading-like child) plus the
// first $-prefixed price in the region's text.
func parseHeuristics(restaurant, pageURL string, root *html.Node) []models.MenuItem {
	var items []models.MenuItem
	seen := map[string]bool{}

	for _, sel := range itemSelectors {
		for _, node := range cascadia.QueryAll(root, sel) {
			name := nodeAttr(node, "data-name")
			if name == "" {
				name = nodeAttr(node, "aria-label")
			}
			if name == "" {
				name = headlineText(node)
			}
			name = strings.TrimSpace(name)
			if name == "" || seen[name] || !looksLikeMenuItem(name) {
				continue
			}
			seen[name] = true

			item := models.MenuItem{
				Restaurant: restaurant,
				Name:       name,
				SourceURL:  pageURL,
			}
			if price := parsePriceFromText(nodeText(node)); price != nil {
				item.Price = price
			}
			items = append(items, item)
		}
	}

	return items
}

// scanText is the last-resort extraction: every visible line containing a
// currency symbol, under 120 characters, with the price substring stripped,
// is a potential item name.
func scanText(restaurant, pageURL, rawHTML string) []models.MenuItem {
	var items []models.MenuItem
	seen := map[string]bool{}

	for _, line := range visibleTextLines(rawHTML) {
		if !strings.Contains(line, "$") || len(line) > 120 {
			continue
		}
		price := parsePriceFromText(line)
		name := rePriceToken.ReplaceAllString(line, " ")
		name = reMultiSpace.ReplaceAllString(name, " ")
		name = strings.Trim(name, " •:-")
		if name == "" || seen[name] || !looksLikeMenuItem(name) {
			continue
		}
		seen[name] = true

		items = append(items, models.MenuItem{
			Restaurant: restaurant,
			Name:       name,
			Price:      price,
			SourceURL:  pageURL,
		})
	}

	return items
}

// looksLikeMenuItem rejects names of 0-1 words, names longer than 8 words,
// and known boilerplate.
func looksLikeMenuItem(text string) bool {
	if text == "" {
		return false
	}
	words := strings.Fields(text)
	if len(words) < 2 || len(words) > 8 {
		return false
	}
	return !boilerplate[strings.ToLower(text)]
}

// parsePriceFromText returns the first decimal number in the text, rounded
// to 2 decimals.
func parsePriceFromText(text string) *float64 {
	if text == "" {
		return nil
	}
	m := reDollarPrice.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return models.Float64Ptr(round2(atof(m[1])))
}

// headlineText finds the nearest heading-like descendant whose class
// matches a title/name pattern and returns its text.
func headlineText(node *html.Node) string {
	var found string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "h2", "h3", "h4", "span":
				if reTitleClass.MatchString(nodeAttr(n, "class")) {
					if text := strings.TrimSpace(nodeText(n)); text != "" {
						found = text
						return
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return found
}

func nodeAttr(node *html.Node, key string) string {
	for _, attr := range node.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// nodeText concatenates the visible text of a subtree, space-separated.
func nodeText(node *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(text)
			}
			return
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return b.String()
}

// visibleTextLines tokenizes the document and returns trimmed visible text
// chunks, one per text token, skipping script/style/noscript content.
func visibleTextLines(rawHTML string) []string {
	tokenizer := html.NewTokenizer(strings.NewReader(rawHTML))
	var lines []string
	skipDepth := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return lines
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "script", "style", "noscript":
				skipDepth++
			}
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "script", "style", "noscript":
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			for _, line := range strings.Split(string(tokenizer.Text()), "\n") {
				if trimmed := strings.TrimSpace(line); trimmed != "" {
					lines = append(lines, trimmed)
				}
			}
		}
	}
}

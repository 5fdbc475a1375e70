package crawler

import (
	"bytes"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Structure summarizes a page's semantic layout. The assistant uses it to
// judge whether a fetched page is an article, an index or navigation-heavy
// chrome before drafting from its text.
type Structure struct {
	HasNav     bool `json:"has_nav"`
	HasArticle bool `json:"has_article"`
	HasAside   bool `json:"has_aside"`
	Sections   int  `json:"sections"`
	Paragraphs int  `json:"paragraphs"`
	Lists      int  `json:"lists"`
	Tables     int  `json:"tables"`
	Forms      int  `json:"forms"`
}

// analyzeStructure walks the parsed node tree and counts semantic
// elements. Parse errors yield a zero Structure; the page is still usable
// through the text extraction path.
func analyzeStructure(body []byte) Structure {
	var s Structure
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return s
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Nav:
				s.HasNav = true
			case atom.Article:
				s.HasArticle = true
			case atom.Aside:
				s.HasAside = true
			case atom.Section:
				s.Sections++
			case atom.P:
				s.Paragraphs++
			case atom.Ul, atom.Ol:
				s.Lists++
			case atom.Table:
				s.Tables++
			case atom.Form:
				s.Forms++
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return s
}

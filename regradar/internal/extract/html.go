package extract

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// extractHTML sanitizes the document and converts it to markdown. The title
// comes from the raw tree since sanitization drops <head>. When markdown
// conversion fails, the collected plain text of the tree stands in.
func (e *Extractor) extractHTML(raw []byte) (Result, error) {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return Result{}, err
	}
	title := findTitle(doc)

	clean := e.policy.SanitizeBytes(raw)
	md, err := e.md.ConvertString(string(clean))
	if err != nil || strings.TrimSpace(md) == "" {
		md = collectText(doc)
	}

	text := normalizeText(md)
	if title == "" {
		title = firstLine(text)
	}
	return Result{Title: title, Text: text}, nil
}

// findTitle returns the first <title> or, failing that, <h1> text.
func findTitle(doc *html.Node) string {
	if t := findElementText(doc, atom.Title); t != "" {
		return t
	}
	return findElementText(doc, atom.H1)
}

func findElementText(n *html.Node, a atom.Atom) string {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return strings.TrimSpace(collectText(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findElementText(c, a); t != "" {
			return t
		}
	}
	return ""
}

// collectText gathers visible text nodes, skipping script/style/nav chrome.
func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Head:
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte('\n')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

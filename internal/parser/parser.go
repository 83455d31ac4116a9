package parser

import (
	"context"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/dastanaron/voicenotes/internal/models"
	"github.com/dastanaron/voicenotes/internal/service"
)

// Parser parses HTML note archives written by the export command
type Parser struct {
	folderService *service.FolderService
}

// NewParser creates a new parser
func NewParser(folderService *service.FolderService) *Parser {
	return &Parser{folderService: folderService}
}

// ParseNotesHTML reads an archive. Every <section data-id> is a folder,
// looked up by name or created with its data-color; a section without
// data-id holds unfiled notes. Each <article> is a note with an <h3> title
// and a <pre> body. The returned notes are not stored yet.
func (p *Parser) ParseNotesHTML(ctx context.Context, r io.Reader) ([]models.Note, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var notes []models.Note
	var walkErr error

	var walk func(n *html.Node, folderID *string)
	walk = func(n *html.Node, folderID *string) {
		if walkErr != nil {
			return
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "section":
				folderID = nil
				if _, ok := attr(n, "data-id"); ok {
					name := strings.TrimSpace(textOf(findFirst(n, "h2")))
					color, _ := attr(n, "data-color")
					folder, err := p.folderService.Upsert(ctx, name, color)
					if err != nil {
						walkErr = err
						return
					}
					folderID = models.StringPtr(folder.ID)
				}
			case "article":
				note := models.Note{
					Title:   strings.TrimSpace(textOf(findFirst(n, "h3"))),
					Content: textOf(findFirst(n, "pre")),
				}
				if folderID != nil {
					note.FolderID = models.StringPtr(*folderID)
				}
				if note.Title != "" || note.Content != "" {
					notes = append(notes, note)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, folderID)
		}
	}

	walk(doc, nil)
	if walkErr != nil {
		return nil, walkErr
	}
	return notes, nil
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func findFirst(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// textOf concatenates the text below n
func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return sb.String()
}

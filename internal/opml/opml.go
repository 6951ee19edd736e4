// ABOUTME: OPML parsing and writing for feed subscription import/export
// ABOUTME: Maps nested outline folders to and from slash-separated folder paths

package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// Document represents an OPML document.
type Document struct {
	Title    string
	Outlines []Outline
}

// Outline is a node in the OPML tree: a feed when XMLURL is set, a
// folder otherwise.
type Outline struct {
	Text     string
	Title    string
	Type     string
	XMLURL   string
	Children []Outline
}

// Feed is a flattened subscription with its folder path ("a/b" for
// nested folders, empty at the root).
type Feed struct {
	URL    string
	Title  string
	Folder string
}

type opmlXML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    headXML  `xml:"head"`
	Body    bodyXML  `xml:"body"`
}

type headXML struct {
	Title string `xml:"title"`
}

type bodyXML struct {
	Outlines []outlineXML `xml:"outline"`
}

type outlineXML struct {
	Text     string       `xml:"text,attr"`
	Title    string       `xml:"title,attr,omitempty"`
	Type     string       `xml:"type,attr,omitempty"`
	XMLURL   string       `xml:"xmlUrl,attr,omitempty"`
	Children []outlineXML `xml:"outline,omitempty"`
}

// NewDocument creates an empty OPML document.
func NewDocument(title string) *Document {
	return &Document{Title: title}
}

// Parse reads OPML from a reader.
func Parse(r io.Reader) (*Document, error) {
	var raw opmlXML
	if err := xml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding opml: %w", err)
	}
	doc := &Document{Title: raw.Head.Title}
	for _, outline := range raw.Body.Outlines {
		doc.Outlines = append(doc.Outlines, fromXML(outline))
	}
	return doc, nil
}

// ParseFile reads OPML from a file.
func ParseFile(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening opml file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

func fromXML(raw outlineXML) Outline {
	outline := Outline{
		Text:   raw.Text,
		Title:  raw.Title,
		Type:   raw.Type,
		XMLURL: raw.XMLURL,
	}
	for _, child := range raw.Children {
		outline.Children = append(outline.Children, fromXML(child))
	}
	return outline
}

func toXML(outline Outline) outlineXML {
	raw := outlineXML{
		Text:   outline.Text,
		Title:  outline.Title,
		Type:   outline.Type,
		XMLURL: outline.XMLURL,
	}
	for _, child := range outline.Children {
		raw.Children = append(raw.Children, toXML(child))
	}
	return raw
}

// AllFeeds flattens the outline tree into feeds with folder paths.
func (d *Document) AllFeeds() []Feed {
	var feeds []Feed
	for _, outline := range d.Outlines {
		feeds = append(feeds, collect(outline, "")...)
	}
	return feeds
}

func collect(outline Outline, folder string) []Feed {
	if outline.XMLURL != "" {
		return []Feed{{
			URL:    outline.XMLURL,
			Title:  outlineTitle(outline),
			Folder: folder,
		}}
	}
	path := outline.Text
	if folder != "" {
		path = folder + "/" + outline.Text
	}
	var feeds []Feed
	for _, child := range outline.Children {
		feeds = append(feeds, collect(child, path)...)
	}
	return feeds
}

func outlineTitle(outline Outline) string {
	if outline.Title != "" {
		return outline.Title
	}
	return outline.Text
}

// AddFeed places a feed under the folder path, creating intermediate
// folder outlines as needed. Duplicate URLs are rejected.
func (d *Document) AddFeed(url, title, folder string) error {
	for _, existing := range d.AllFeeds() {
		if existing.URL == url {
			return fmt.Errorf("feed with URL %s already exists", url)
		}
	}
	feed := Outline{Text: title, Title: title, Type: "rss", XMLURL: url}
	if folder == "" {
		d.Outlines = append(d.Outlines, feed)
		return nil
	}
	parts := strings.Split(strings.Trim(folder, "/"), "/")
	d.Outlines = insert(d.Outlines, parts, feed)
	return nil
}

// insert walks (and extends) the folder chain named by parts, then
// appends the feed at its end.
func insert(outlines []Outline, parts []string, feed Outline) []Outline {
	if len(parts) == 0 {
		return append(outlines, feed)
	}
	for i := range outlines {
		if outlines[i].XMLURL == "" && outlines[i].Text == parts[0] {
			outlines[i].Children = insert(outlines[i].Children, parts[1:], feed)
			return outlines
		}
	}
	folder := Outline{Text: parts[0]}
	folder.Children = insert(nil, parts[1:], feed)
	return append(outlines, folder)
}

// Write serializes the document as OPML 2.0.
func (d *Document) Write(w io.Writer) error {
	raw := opmlXML{
		Version: "2.0",
		Head:    headXML{Title: d.Title},
	}
	for _, outline := range d.Outlines {
		raw.Body.Outlines = append(raw.Body.Outlines, toXML(outline))
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	if err := encoder.Encode(raw); err != nil {
		return fmt.Errorf("encoding opml: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteFile serializes the document to a file.
func (d *Document) WriteFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating opml file: %w", err)
	}
	defer file.Close()
	return d.Write(file)
}

// Package source loads documents from disk as plain text.
package source

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnsupportedType is returned for file extensions with no extractor.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrNotText is returned when a plain-text file is not valid UTF-8.
	ErrNotText = errors.New("file is not valid UTF-8 text")
)

// Document is the text extracted from a file.
type Document struct {
	Path  string
	Type  string
	Text  string
	Pages int
}

// SupportedTypes lists the extensions Load understands.
func SupportedTypes() []string {
	return []string{".txt", ".md", ".pdf", ".docx"}
}

// Load reads path and extracts its text based on the file extension.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	doc, err := Extract(f, info.Size(), filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.Path = path
	return doc, nil
}

// Extract pulls text out of data according to ext.
func Extract(data io.ReaderAt, size int64, ext string) (*Document, error) {
	switch strings.ToLower(ext) {
	case ".txt", ".md", "":
		return extractText(data, size)
	case ".pdf":
		return extractPDF(data, size)
	case ".docx":
		return extractDOCX(data, size)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
}

func extractText(data io.ReaderAt, size int64) (*Document, error) {
	buf := make([]byte, size)
	if _, err := data.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read text: %w", err)
	}

	buf = bytes.TrimPrefix(buf, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(buf) {
		return nil, ErrNotText
	}

	return &Document{
		Type:  "txt",
		Text:  normalizeNewlines(string(buf)),
		Pages: 1,
	}, nil
}

func extractPDF(data io.ReaderAt, size int64) (*Document, error) {
	reader, err := pdf.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	var pages []string
	numPages := reader.NumPage()

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}

	return &Document{
		Type:  "pdf",
		Text:  strings.Join(pages, "\n\n"),
		Pages: numPages,
	}, nil
}

func extractDOCX(data io.ReaderAt, size int64) (*Document, error) {
	reader, err := zip.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open DOCX: %w", err)
	}

	for _, f := range reader.File {
		if f.Name != "word/document.xml" {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open document.xml: %w", err)
		}
		defer rc.Close()

		text, err := docxParagraphs(rc)
		if err != nil {
			return nil, fmt.Errorf("parse document.xml: %w", err)
		}

		return &Document{Type: "docx", Text: text, Pages: 1}, nil
	}

	return nil, fmt.Errorf("open DOCX: word/document.xml not found")
}

// docxParagraphs collects the text runs of each w:p element, separating
// paragraphs with blank lines.
func docxParagraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if p := strings.TrimSpace(current.String()); p != "" {
					paragraphs = append(paragraphs, p)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}

	return strings.Join(paragraphs, "\n\n"), nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// Package extract turns uploaded files into plain text.
package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"echograph/internal/util"
)

type Format int

const (
	Fallback Format = iota
	PDF
	DOCX
)

func (f Format) String() string {
	switch f {
	case PDF:
		return "pdf"
	case DOCX:
		return "docx"
	default:
		return "text"
	}
}

// DetectFormat picks the extractor from the file extension.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return PDF
	case ".docx":
		return DOCX
	default:
		return Fallback
	}
}

// Text extracts sanitized text from the file at path. A document without
// extractable text yields "" and no error.
func Text(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var (
		raw string
		err error
	)
	switch DetectFormat(path) {
	case PDF:
		raw, err = pdfText(path)
	case DOCX:
		raw, err = docxText(path)
	default:
		raw, err = plainText(path)
	}
	if err != nil {
		return "", err
	}
	return util.SanitizeText(raw), nil
}

func pdfText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	return buf.String(), nil
}

type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []struct {
		Content string `xml:",chardata"`
	} `xml:"t"`
}

// docxText joins the paragraphs of word/document.xml with newlines.
func docxText(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	for _, file := range zr.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open docx body: %w", err)
		}
		defer rc.Close()
		var doc documentXML
		if err := xml.NewDecoder(rc).Decode(&doc); err != nil {
			return "", fmt.Errorf("parse docx body: %w", err)
		}
		paras := make([]string, 0, len(doc.Body.Paragraphs))
		for _, p := range doc.Body.Paragraphs {
			var b strings.Builder
			for _, r := range p.Runs {
				for _, t := range r.Text {
					b.WriteString(t.Content)
				}
			}
			paras = append(paras, b.String())
		}
		return strings.Join(paras, "\n"), nil
	}
	return "", nil
}

func plainText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return strings.ToValidUTF8(string(b), "\uFFFD"), nil
}

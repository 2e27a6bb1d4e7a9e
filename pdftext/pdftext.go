// Package pdftext pulls plain text out of PDF files.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MaxChars bounds how much text is returned.
const MaxChars = 60000

var ErrNoText = errors.New("pdf contains no extractable text")

// Extract returns the plain text of every page in the file at path.
func Extract(path string) (text string, err error) {
	defer func() {
		// the parser panics on some malformed files
		if r := recover(); r != nil {
			err = fmt.Errorf("parsing pdf %s: %v", path, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(plain, MaxChars*4)); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}

	text = strings.TrimSpace(buf.String())
	if text == "" {
		return "", ErrNoText
	}
	if r := []rune(text); len(r) > MaxChars {
		text = string(r[:MaxChars])
	}
	return text, nil
}

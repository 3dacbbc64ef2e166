package pdfinfo

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Info captures container-level metadata extracted from a PDF.
type Info struct {
	Pages int
}

// Inspect reads the PDF at path and reports its page count.
func Inspect(path string) (Info, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Info{}, errors.New("pdfinfo inspect: empty path")
	}

	pages, err := api.PageCountFile(path)
	if err != nil {
		return Info{}, fmt.Errorf("pdfinfo inspect %s: %w", path, err)
	}
	return Info{Pages: pages}, nil
}

// pdfMagic is the signature every PDF starts with.
var pdfMagic = []byte("%PDF-")

// LooksLikePDF sniffs the file header. It is cheaper than a full parse and
// good enough to keep stray files out of the ingest flow.
func LooksLikePDF(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	header := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, header); err != nil {
		return false
	}
	return bytes.Equal(header, pdfMagic)
}

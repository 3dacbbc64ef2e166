// Package pdfinfo inspects uploaded PDF files before they enter the
// pipeline. Inspection is best effort: a malformed PDF still gets stored
// and processed, it just lacks the derived properties.
package pdfinfo

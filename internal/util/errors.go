package util

import "errors"

// ErrNoExtractableText marks a document whose PDF produced no text at all.
// It means "could not be analyzed", never "analyzed and clean".
var ErrNoExtractableText = errors.New("no extractable text found in PDF")

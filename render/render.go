package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrPlaceholderNotFound is returned when the document carries no text
// matching the requested placeholder.
var ErrPlaceholderNotFound = errors.New("signature placeholder not found")

// Stamp is one signature to embed.
type Stamp struct {
	Placeholder string
	Image       []byte
	StampedAt   time.Time
}

// Renderer embeds signature images into a PDF at named placeholders and
// returns the new document bytes.
type Renderer interface {
	RenderSignature(ctx context.Context, doc, image []byte, placeholder string, stampedAt time.Time) ([]byte, error)
	RenderMultipleSignatures(ctx context.Context, doc []byte, stamps []Stamp) ([]byte, error)
}

// Placeholder builds the token printed in the signature box of a signer,
// e.g. "REVISA_Ana María López".
func Placeholder(responsibility, fullName string) string {
	return strings.ToUpper(strings.TrimSpace(responsibility)) + "_" + strings.TrimSpace(fullName)
}

// renderEach applies stamps one at a time and stops at the first failure.
func renderEach(ctx context.Context, r Renderer, doc []byte, stamps []Stamp) ([]byte, error) {
	out := doc
	for _, s := range stamps {
		next, err := r.RenderSignature(ctx, out, s.Image, s.Placeholder, s.StampedAt)
		if err != nil {
			return nil, fmt.Errorf("stamp %q: %w", s.Placeholder, err)
		}
		out = next
	}
	return out, nil
}

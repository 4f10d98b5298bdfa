package tiles

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidTemplate = errors.New("invalid tile url template")

var placeholders = []string{"{x}", "{y}", "{z}"}

// ValidateTemplate checks that every coordinate placeholder is present.
func ValidateTemplate(template string) error {
	if template == "" {
		return fmt.Errorf("%w: empty template", ErrInvalidTemplate)
	}
	for _, p := range placeholders {
		if !strings.Contains(template, p) {
			return fmt.Errorf("%w: placeholder %v not found", ErrInvalidTemplate, p)
		}
	}
	return nil
}

// FormatURL substitutes the key coordinates into template.
func FormatURL(template string, zoom, x, y int) string {
	s := strings.ReplaceAll(template, "{z}", strconv.Itoa(zoom))
	s = strings.ReplaceAll(s, "{x}", strconv.Itoa(x))
	s = strings.ReplaceAll(s, "{y}", strconv.Itoa(y))
	return s
}

// URL is the address of k on its own server.
func (k Key) URL() string {
	return FormatURL(k.Server, k.Zoom, k.X, k.Y)
}

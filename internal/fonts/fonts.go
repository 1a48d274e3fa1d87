// Package fonts resolves the TrueType font used for diagrams and PDF export.
//
// A Set is resolved once per render or export operation and passed explicitly to
// the code that needs it; nothing is cached at package level.
package fonts

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// ErrNotFound reports that none of the candidate fonts could be loaded.
var ErrNotFound = errors.New("no usable font found")

// FallbackName identifies the embedded Go Regular font.
const FallbackName = "goregular"

// Set is a loaded font resource.
type Set struct {
	// Name is the file the font was read from, or FallbackName.
	Name string
	// TTF holds the raw font file.
	TTF []byte
	// Fallback is true when the embedded Latin-only font is in use.
	Fallback bool

	parsed *truetype.Font
}

// Candidates returns the system font paths tried for the current OS, in order.
func Candidates() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{
			`C:\Windows\Fonts\malgun.ttf`,
			`C:\Windows\Fonts\NanumGothic.ttf`,
		}
	case "darwin":
		return []string{
			"/Library/Fonts/NanumGothic.ttf",
			"/System/Library/Fonts/Supplemental/Arial Unicode.ttf",
			"/Library/Fonts/Arial Unicode.ttf",
		}
	default:
		return []string{
			"/usr/share/fonts/truetype/nanum/NanumGothic.ttf",
			"/usr/share/fonts/TTF/NanumGothic.ttf",
			"/usr/share/fonts/nanum/NanumGothic.ttf",
			"/usr/share/fonts/truetype/unfonts-core/UnDotum.ttf",
			"/usr/share/fonts/truetype/baekmuk/gulim.ttf",
		}
	}
}

// Resolve loads the first font with Hangul coverage from the explicit path (if
// set) followed by the OS candidates. It always returns a usable Set. When no
// candidate qualifies the embedded fallback is returned together with an error
// wrapping ErrNotFound, which callers report as a warning.
func Resolve(explicit string) (*Set, error) {
	paths := Candidates()
	if explicit != "" {
		paths = append([]string{explicit}, paths...)
	}
	return resolve(paths, explicit)
}

func resolve(paths []string, explicit string) (*Set, error) {
	for _, p := range paths {
		s, err := Load(p)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				slog.Debug("font candidate rejected", "path", p, "error", err)
			}
			continue
		}
		if !s.HasHangul() {
			slog.Debug("font candidate rejected", "path", p, "error", "no Hangul glyphs")
			continue
		}
		return s, nil
	}
	fb := Fallback()
	if explicit != "" {
		return fb, fmt.Errorf("%w: %s", ErrNotFound, explicit)
	}
	return fb, ErrNotFound
}

// Load reads and parses a single TrueType file.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	parsed, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", path, err)
	}
	return &Set{Name: path, TTF: data, parsed: parsed}, nil
}

// Fallback returns the embedded Go Regular font.
func Fallback() *Set {
	parsed, err := truetype.Parse(goregular.TTF)
	if err != nil {
		// The embedded font is known to parse.
		panic(fmt.Sprintf("parse embedded font: %v", err))
	}
	return &Set{Name: FallbackName, TTF: goregular.TTF, Fallback: true, parsed: parsed}
}

// HasHangul reports whether the font maps Hangul syllables to glyphs.
func (s *Set) HasHangul() bool {
	return s.parsed.Index('가') != 0 && s.parsed.Index('회') != 0
}

// Face returns a font face at the given point size. Hinting is disabled so output
// does not depend on anything but the font and the size.
func (s *Set) Face(size float64) font.Face {
	return truetype.NewFace(s.parsed, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

package glossary

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaskMap records the placeholders substituted into one text, mapped to
// their target-language replacements. It is scoped to a single Protect call
// and never shared across requests.
type MaskMap map[string]string

// RestorationError reports a placeholder the translation model dropped or
// corrupted: the protected term never made it back into the output.
type RestorationError struct {
	Placeholder string
	Replacement string
}

func (e *RestorationError) Error() string {
	return fmt.Sprintf("placeholder %q (for %q) missing from translated text", e.Placeholder, e.Replacement)
}

const markerBase = "__VX"

// Protector masks glossary terms with collision-free placeholders before
// translation and restores them afterward.
type Protector struct {
	store *Store
}

func NewProtector(store *Store) *Protector {
	return &Protector{store: store}
}

// segment splits the working text into runs of plain text and placeholder
// tokens. Placeholder segments are never re-scanned, so an already protected
// span cannot match a shorter term again.
type segment struct {
	text        string
	placeholder bool
}

// Protect replaces every glossary term for the direction with a unique
// placeholder and returns the masked text plus the placeholder map. Matching
// is case-insensitive, non-overlapping, longest term first. Directions
// without rules pass the text through untouched with an empty map.
func (p *Protector) Protect(text, srcLang, tgtLang string) (string, MaskMap) {
	masks := MaskMap{}
	rules := p.store.Rules(Direction{Src: srcLang, Tgt: tgtLang})
	if len(rules) == 0 {
		return text, masks
	}

	// Grow the marker until it cannot occur in the input, so no placeholder
	// can collide with pre-existing text.
	marker := markerBase
	for strings.Contains(text, marker) {
		marker += "X"
	}

	segments := []segment{{text: text}}
	next := 0
	for _, rule := range rules {
		lowerTerm := strings.ToLower(rule.Term)
		var out []segment
		for _, seg := range segments {
			if seg.placeholder {
				out = append(out, seg)
				continue
			}
			lowered, offsets := foldOffsets(seg.text)
			prev := 0
			start := 0
			for {
				pos := strings.Index(lowered[start:], lowerTerm)
				if pos < 0 {
					break
				}
				pos += start
				origStart := offsets[pos]
				origEnd := offsets[pos+len(lowerTerm)]
				placeholder := marker + strconv.Itoa(next) + "__"
				next++
				masks[placeholder] = rule.Translation
				if origStart > prev {
					out = append(out, segment{text: seg.text[prev:origStart]})
				}
				out = append(out, segment{text: placeholder, placeholder: true})
				prev = origEnd
				start = pos + len(lowerTerm)
			}
			if prev < len(seg.text) {
				out = append(out, segment{text: seg.text[prev:]})
			}
		}
		segments = out
	}

	if len(masks) == 0 {
		return text, masks
	}
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(seg.text)
	}
	return b.String(), masks
}

// foldOffsets lowercases s and maps every byte of the lowered string back
// to the original offset of the rune it came from, with one trailing entry
// for the end of the string. Lowercasing can change a rune's byte width
// (U+1E9E lowers to the two-byte U+00DF), so match positions found in the
// lowered text cannot index the original directly.
func foldOffsets(s string) (string, []int) {
	var b strings.Builder
	b.Grow(len(s))
	offsets := make([]int, 0, len(s)+1)
	for i, r := range s {
		lower := unicode.ToLower(r)
		for j := 0; j < utf8.RuneLen(lower); j++ {
			offsets = append(offsets, i)
		}
		b.WriteRune(lower)
	}
	offsets = append(offsets, len(s))
	return b.String(), offsets
}

// Restore substitutes every placeholder in the translated text with its
// target-language term. A placeholder absent from the text is a
// RestorationError; partial restoration is never returned.
func Restore(text string, masks MaskMap) (string, error) {
	for placeholder, replacement := range masks {
		if !strings.Contains(text, placeholder) {
			return "", &RestorationError{Placeholder: placeholder, Replacement: replacement}
		}
	}
	for placeholder, replacement := range masks {
		text = strings.ReplaceAll(text, placeholder, replacement)
	}
	return text, nil
}

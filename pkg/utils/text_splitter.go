package utils

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators go from the coarsest boundary to single characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveTextSplitter splits text on the coarsest separator present, recursing
// into finer separators for pieces that are still too long, then greedily
// merges pieces back up to ChunkSize with up to ChunkOverlap carried over.
// Lengths are counted in runes. Output depends only on the input and the
// configured parameters.
type RecursiveTextSplitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

func NewRecursiveTextSplitter(chunkSize, chunkOverlap int) *RecursiveTextSplitter {
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &RecursiveTextSplitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Separators:   DefaultSeparators,
	}
}

func (s *RecursiveTextSplitter) SplitText(text string) []string {
	return s.split(text, s.Separators)
}

func (s *RecursiveTextSplitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var finer []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			finer = separators[i+1:]
			break
		}
	}

	var (
		final []string
		good  []string
	)
	for _, piece := range splitKeepingSeparator(text, separator) {
		if runeLen(piece) < s.ChunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good)...)
			good = nil
		}
		if len(finer) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.split(piece, finer)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good)...)
	}
	return final
}

// merge joins pieces (which already carry their leading separator) into
// chunks of at most ChunkSize, dropping pieces from the front until at most
// ChunkOverlap remains before starting the next chunk.
func (s *RecursiveTextSplitter) merge(pieces []string) []string {
	var (
		chunks  []string
		current []string
		total   int
	)
	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > s.ChunkSize && len(current) > 0 {
			if chunk := joinTrimmed(current); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for total > s.ChunkOverlap || (total+n > s.ChunkSize && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}
	if chunk := joinTrimmed(current); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// splitKeepingSeparator cuts text before every non-overlapping occurrence of
// sep after the first byte, so each piece but the first starts with sep. An
// empty sep splits into runes. Empty pieces are dropped.
func splitKeepingSeparator(text, sep string) []string {
	if sep == "" {
		pieces := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}

	var pieces []string
	start := 0
	for p := 1; p < len(text); {
		if !strings.HasPrefix(text[p:], sep) {
			p++
			continue
		}
		pieces = append(pieces, text[start:p])
		start = p
		p += len(sep)
	}
	if start < len(text) {
		pieces = append(pieces, text[start:])
	}
	return pieces
}

func joinTrimmed(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, ""))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

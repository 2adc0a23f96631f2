package chunker

import "kbrag/internal/domain"

// SplitWindows cuts text into windows of size tokens, each starting
// size-overlap tokens after the previous one. The last window ends at the
// end of the text.
func SplitWindows(tok domain.Tokenizer, text string, size, overlap int) []string {
	ids := tok.Encode(text)
	if len(ids) == 0 || size <= 0 {
		return nil
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}
	var out []string
	for start := 0; start < len(ids); start += step {
		end := min(start+size, len(ids))
		out = append(out, tok.Decode(ids[start:end]))
		if end == len(ids) {
			break
		}
	}
	return out
}

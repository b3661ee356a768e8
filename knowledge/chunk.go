package knowledge

import "strings"

// splitText breaks text into windows of at most size characters that end on
// word boundaries. Consecutive windows share roughly overlap characters.
// A single word longer than size becomes its own chunk.
func splitText(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if size <= 0 {
		return []string{strings.Join(words, " ")}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []string
	start := 0
	for start < len(words) {
		end := start
		length := 0
		for end < len(words) {
			add := len(words[end])
			if end > start {
				add++
			}
			if length+add > size && end > start {
				break
			}
			length += add
			end++
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}

		// step back over trailing words to carry the overlap forward
		next := end
		carried := 0
		for next-1 > start && carried+len(words[next-1])+1 <= overlap {
			next--
			carried += len(words[next]) + 1
		}
		start = next
	}
	return chunks
}

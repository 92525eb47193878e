package schedule

import "math/rand"

const (
	idLength = 5

	// idAlphabet drops 0 and l, the usual look-alike characters, leaving 34
	// symbols. 34^5 IDs is plenty for a registry that holds dozens of
	// entries; collisions are handled by regenerating.
	idAlphabet = "123456789abcdefghijkmnopqrstuvwxyz"
)

// generateID returns a fresh random ID for which taken reports false.
func generateID(taken func(string) bool) string {
	buf := make([]byte, idLength)
	for {
		for i := range buf {
			buf[i] = idAlphabet[rand.Intn(len(idAlphabet))]
		}
		if id := string(buf); !taken(id) {
			return id
		}
	}
}

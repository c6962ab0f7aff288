package parse

// stripANSI removes ANSI escape sequences (CSI and OSC) from a raw line so
// colorized writer output parses the same as plain text.
func stripANSI(input []byte) []byte {
	out := make([]byte, 0, len(input))
	i := 0
	for i < len(input) {
		if input[i] == 0x1B {
			i++
			if i < len(input) && (input[i] == '[' || input[i] == ']') {
				i++
				for i < len(input) && !(input[i] >= 0x40 && input[i] <= 0x7E) {
					i++
				}
				if i < len(input) {
					i++
				}
			}
			continue
		}
		out = append(out, input[i])
		i++
	}
	return out
}

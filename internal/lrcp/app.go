package lrcp

// Reverser is the reference application from spec.md §4.3: it reads one
// newline-terminated line at a time, reverses the bytes before the
// newline, and writes the reversed line followed by '\n'. GetChar/PutChar
// returning ok=false means the session was destroyed; the coroutine exits.
func Reverser(io *Session) {
	var line []byte
	for {
		line = line[:0]
		for {
			ch, ok := io.GetChar()
			if !ok {
				return
			}
			if ch == '\n' {
				break
			}
			line = append(line, ch)
		}

		reverse(line)
		line = append(line, '\n')
		for _, ch := range line {
			if !io.PutChar(ch) {
				return
			}
		}
	}
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

package migrate

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Confirmer gates every mutating step of the swap. The CLI wires a
// terminal prompt; tests inject a canned implementation.
type Confirmer interface {
	Confirm(prompt string) bool
}

// TerminalConfirmer prompts on the terminal and accepts "y" or "yes"
type TerminalConfirmer struct {
	In  io.Reader
	Out io.Writer
}

// Confirm prints the prompt and reads one line of input
func (c *TerminalConfirmer) Confirm(prompt string) bool {
	fmt.Fprintf(c.Out, "%s [y/N]: ", prompt)

	reader := bufio.NewReader(c.In)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

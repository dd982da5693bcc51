package reasoning

import (
	"fmt"
	"strings"
)

// emptyChainMessage is returned verbatim for sessions with no thoughts.
const emptyChainMessage = "No thoughts recorded yet."

// FormatChain renders a chain as a numbered transcript, one line per
// thought. Branch-created thoughts carry a parent marker in the prefix
// and are indented one level under the main line of reasoning.
//
//	00: first thought
//	01: second thought
//	  02→00: a branch off the first
func FormatChain(chain *Chain) string {
	if chain == nil || chain.Len() == 0 {
		return emptyChainMessage
	}

	var b strings.Builder
	for i := range chain.Thoughts {
		t := &chain.Thoughts[i]

		prefix := fmt.Sprintf("%02d", t.Step)
		if t.Parent != nil {
			prefix = fmt.Sprintf("%02d→%d", t.Step, *t.Parent)
		}

		indent := strings.Repeat("  ", strings.Count(prefix, "→"))

		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(indent)
		b.WriteString(prefix)
		b.WriteString(": ")
		b.WriteString(t.Text)
	}
	return b.String()
}

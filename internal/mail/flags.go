// Package mail holds what the local mailbox formats share: message flags,
// the per-folder summary index, parsed message metadata, change
// notifications and the error taxonomy.
package mail

import "strings"

// Flags is the set of maildir flags on a message.
type Flags uint8

const (
	FlagDraft Flags = 1 << iota
	FlagFlagged
	FlagPassed
	FlagAnswered
	FlagSeen
	FlagDeleted
)

// flagLetters is in maildir order, which is ASCII order.
var flagLetters = []struct {
	flag   Flags
	letter byte
}{
	{FlagDraft, 'D'},
	{FlagFlagged, 'F'},
	{FlagPassed, 'P'},
	{FlagAnswered, 'R'},
	{FlagSeen, 'S'},
	{FlagDeleted, 'T'},
}

// String encodes f as maildir info letters, e.g. "FS".
func (f Flags) String() string {
	var b strings.Builder
	for _, fl := range flagLetters {
		if f&fl.flag != 0 {
			b.WriteByte(fl.letter)
		}
	}
	return b.String()
}

// Has reports whether every flag in x is set.
func (f Flags) Has(x Flags) bool {
	return f&x == x
}

// ParseFlags decodes maildir info letters. Unknown letters are ignored.
func ParseFlags(s string) Flags {
	var f Flags
	for i := 0; i < len(s); i++ {
		for _, fl := range flagLetters {
			if s[i] == fl.letter {
				f |= fl.flag
			}
		}
	}
	return f
}

package conduit

import (
	"strings"

	"github.com/matheus3301/pimsync/internal/calstore"
	"github.com/matheus3301/pimsync/internal/config"
	"github.com/matheus3301/pimsync/internal/pilot"
)

// summaryLen is how much of a memo's text becomes the journal summary.
const summaryLen = 50

type memoCodec struct{}

func (memoCodec) kind() config.Kind { return config.KindMemo }
func (memoCodec) label() string     { return "Memo" }
func (memoCodec) dbName() string    { return "MemoDB" }

func (memoCodec) unpackAppInfo(b []byte) (pilot.AppInfo, error) {
	return pilot.UnpackMemoAppInfo(b)
}

func (memoCodec) toDevice(c *calstore.Component, _ *codecEnv) []byte {
	memo := &pilot.Memo{Text: c.FirstDescription()}
	return memo.Pack()
}

func (memoCodec) fromDevice(rec *pilot.Record, in *calstore.Component, env *codecEnv) (*calstore.Component, error) {
	memo, err := pilot.UnpackMemo(rec.Data)
	if err != nil {
		return nil, err
	}
	now := env.now
	c := newComponent(calstore.KindJournal, in, now)
	c.LastModified = &now

	if memo.Text == "" {
		c.Summary = ""
		c.Description = nil
		c.Comment = nil
	} else {
		c.Summary = memoSummary(memo.Text)
		c.Description = []string{memo.Text}
	}

	finishFromDevice(c, rec, env)
	return c, nil
}

// memoSummary is the first line of text when it ends within summaryLen
// characters, else the first summaryLen characters.
func memoSummary(text string) string {
	r := []rune(text)
	head := r[:min(len(r), summaryLen)]
	if i := strings.IndexRune(string(head), '\n'); i >= 0 {
		return string(head)[:i]
	}
	return string(head)
}

package core

// Comment holds the text of one or more consecutive '#'-prefixed lines,
// with the leading '#' stripped from each and internal line breaks kept
// as '\n'.
type Comment struct {
	Text string
}

// NewComment returns a new Comment holding text.
func NewComment(text string) *Comment {
	return &Comment{Text: text}
}

// Kind implements Item.
func (c *Comment) Kind() Kind { return KindComment }

// Equal compares comments by text.
func (c *Comment) Equal(other *Comment) bool {
	return c.Text == other.Text
}

// Dup returns a detached copy of c.
func (c *Comment) Dup() *Comment {
	return &Comment{Text: c.Text}
}

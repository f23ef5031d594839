package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"Plain text", "Paris", "Paris"},
		{"Strips tags", "<b>Bold</b> and <i>italic</i>", "Bold and italic"},
		{"Tag with attributes", `<span style="color:red">red</span>`, "red"},
		{"Decodes entities", "a &lt; b &amp;&amp; c &gt; d", "a < b && c > d"},
		{"Quotes", "&quot;hi&quot; it&#39;s", `"hi" it's`},
		{"Non-breaking space", "one&nbsp;two", "one two"},
		{"Collapses whitespace", "  line1<br>\n\n\tline2  ", "line1 line2"},
		{"Unclosed angle bracket survives", "x < y", "x < y"},
		{"Encoded tag is removed", "&lt;b&gt;bold&lt;/b&gt;", "bold"},
		{"Double-encoded entity", "&amp;lt;", "<"},
		{"Comparison text", "x &lt; 5 &amp;&amp; y &gt; 3", "x < 5 && y > 3"},
		{"Decoded comparison in a sentence", "if a &lt; b then c &gt; d", "if a < b then c > d"},
		{"Decoded arrow", "5 &gt; 3 &lt;- x", "5 > 3 <- x"},
		{"Empty", "", ""},
		{"Only markup", "<div><br/></div>", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Clean(tc.input))
		})
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	inputs := []string{
		"<p>Hello <b>world</b></p>",
		"&amp;lt;script&amp;gt;",
		"&lt;&lt;b&gt;&gt;",
		"a  b",
		"tab\tand\nnewline",
		"<<>>",
		"&amp;amp;amp;",
		"\xff<\xfe>",
		"x &lt; 5 &amp;&amp; y &gt; 3",
		"if a &lt; b then c &gt; d",
	}
	for _, in := range inputs {
		once := Clean(in)
		assert.Equal(t, once, Clean(once), "input %q", in)
	}
}

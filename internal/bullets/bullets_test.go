package bullets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_PreambleAndShortBullet(t *testing.T) {
	got := Format("Here's a summary:\n1. Revenue grew 12%.\n2. .", Options{})
	require.Len(t, got, 1)
	assert.Equal(t, Bullet("Revenue grew 12%."), got[0])
}

func TestFormat_MarkedBullets(t *testing.T) {
	raw := `Summary:
• Acme Corp raised $30 million in a Series B round.
- The funding will expand operations in Europe.
* Hiring will double the engineering team this year.
3) Customers include several large hospital networks.
5. A fifth bullet that goes past the cap is dropped here.`
	got := Format(raw, Options{})
	assert.Equal(t, Summary{
		"Acme Corp raised $30 million in a Series B round.",
		"The funding will expand operations in Europe.",
		"Hiring will double the engineering team this year.",
		"Customers include several large hospital networks.",
	}, got)
}

func TestFormat_RejectsInvalidMarkedLines(t *testing.T) {
	raw := "- The deal closes next quarter pending approval.\n" +
		"- Shares rose after the announcement...\n" +
		"- Click here to read the full story.\n" +
		"- Management expects margins to improve,\n" +
		"- Revenue doubled year over year!"
	got := Format(raw, Options{})
	assert.Equal(t, Summary{
		"The deal closes next quarter pending approval.",
		"Revenue doubled year over year!",
	}, got)
}

func TestFormat_SignedFigureIsNotAMarker(t *testing.T) {
	raw := "- Acme cut costs across its hospital division this year.\n" +
		"-5% drop in quarterly revenue was reported."
	got := Format(raw, Options{})
	assert.Equal(t, Summary{
		"Acme cut costs across its hospital division this year.",
		"-5% drop in quarterly revenue was reported.",
	}, got)

	body, marked := stripMarker("-5% drop")
	assert.False(t, marked)
	assert.Equal(t, "-5% drop", body)
	body, marked = stripMarker("–  Revenue rose.")
	assert.True(t, marked)
	assert.Equal(t, "Revenue rose.", body)
}

func TestFormat_UnmarkedLinesNeedLength(t *testing.T) {
	raw := "Short line here.\nThe platform now serves more than two thousand clinics nationwide.\nA second long unmarked line also describes the partnership terms."
	got := Format(raw, Options{})
	assert.Equal(t, Summary{
		"The platform now serves more than two thousand clinics nationwide.",
		"A second long unmarked line also describes the partnership terms.",
	}, got)
}

func TestFormat_SentenceFallbackReplacesWhenLonger(t *testing.T) {
	raw := "The company launched a new analytics product. It targets mid-size retailers. Pricing starts at $99 per month. Early customers reported faster reporting cycles. A fifth sentence is ignored."
	got := Format(raw, Options{})
	assert.Equal(t, Summary{
		"The company launched a new analytics product.",
		"It targets mid-size retailers.",
		"Pricing starts at $99 per month.",
		"Early customers reported faster reporting cycles.",
	}, got)
}

func TestFormat_EmptyInput(t *testing.T) {
	assert.Empty(t, Format("", Options{}))
	assert.Empty(t, Format("Summary:", Options{}))
	assert.Equal(t, "", Format("   ", Options{}).String())
}

func TestFormat_BulletInvariantHolds(t *testing.T) {
	inputs := []string{
		"1. ok.\n2. fine\n3. This one is fine though.",
		strings.Repeat("word ", 60) + ".",
		"Here are 3 key points about the deal:\n- First point is valid here.\n- Second point is valid too.",
		"- \"Quoted bullet ends properly.\"\n- (Parenthetical bullet ends fine.)",
	}
	opts := DefaultOptions()
	for _, in := range inputs {
		got := Format(in, opts)
		assert.LessOrEqual(t, len(got), opts.MaxBullets)
		for _, b := range got {
			assert.True(t, Valid(string(b), opts), "%q", b)
			n := len(strings.Fields(string(b)))
			assert.GreaterOrEqual(t, n, opts.MinWords)
			assert.LessOrEqual(t, n, opts.MaxWords)
		}
	}
}

func TestValid(t *testing.T) {
	opts := DefaultOptions()
	cases := map[string]bool{
		"Revenue grew 12%.":                true,
		"Is the deal done?":                true,
		"The CEO said \"we are growing.\"": true,
		"(The filing is public.)":          true,
		"Too short.":                       false,
		"No terminal punctuation here":     false,
		"Ends with an ellipsis…":           false,
		"Ends with dots...":                false,
		"Ends with a comma,":               false,
		"Read more about the acquisition.": false,
		"Subscribe for daily market news.": false,
		"":                                 false,
		strings.Repeat("w ", 41) + "end.":  false,
	}
	for in, want := range cases {
		assert.Equal(t, want, Valid(in, opts), "%q", in)
	}
}

func TestStripPreamble(t *testing.T) {
	assert.Equal(t, "Body.", StripPreamble("Sure! Here's a summary:\n  Body."))
	assert.Equal(t, "Body.", StripPreamble("SUMMARY: Key points: Body."))
	assert.Equal(t, "Summaries are useful.", StripPreamble("Summaries are useful."))
}

func TestSentences(t *testing.T) {
	got := Sentences("It rose 12.5% today. Did it?  Yes!\"Quote\" ends. Trailing fragment")
	assert.Equal(t, []string{"It rose 12.5% today.", "Did it?", "Yes!\"Quote\" ends.", "Trailing fragment"}, got)
	assert.Empty(t, Sentences("   "))
}

func TestSummaryString(t *testing.T) {
	s := Summary{"First point is here.", "Second point is here."}
	assert.Equal(t, "• First point is here.\n• Second point is here.", s.String())
}

func TestSummaryStrings(t *testing.T) {
	s := Summary{"First point is here.", "Second point is here."}
	got := s.Strings()
	assert.Equal(t, []string{"First point is here.", "Second point is here."}, got)
	got[0] = "changed"
	assert.Equal(t, Bullet("First point is here."), s[0])
	assert.Empty(t, Summary(nil).Strings())
}

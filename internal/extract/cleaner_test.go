package extract

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridata/invoiceminer/internal/frame"
	"github.com/veridata/invoiceminer/internal/template"
)

func invoiceFrame() *frame.Frame {
	f := frame.New("0", "1", frame.PageColumn)
	f.AppendRow("Some letterhead", "", "1")
	f.AppendRow("Description Qty", "Price", "1")
	f.AppendRow("Widget 2", "5.00", "1")
	f.AppendRow("Gadget 1", "9.99", "1")
	f.AppendRow("Subtotal", "14.99", "1")
	f.AppendRow("Page 1 of 1", "", "1")
	return f
}

func TestClean_StartAndEndPatterns(t *testing.T) {
	res := Clean(invoiceFrame(), template.Patterns{
		Start: "description",
		End:   "subtotal",
	}, quiet())

	assert.Equal(t, StatusSuccess, res.Status)
	require.Equal(t, 4, res.Frame.RowCount())
	assert.Contains(t, res.Frame.RowText(0), "Description")
	assert.Contains(t, res.Frame.RowText(3), "Subtotal")
}

func TestClean_StartNotFoundFails(t *testing.T) {
	res := Clean(invoiceFrame(), template.Patterns{Start: "no such anchor"}, quiet())
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "start pattern not found", res.Reason)
	assert.True(t, res.Frame.Empty())
}

func TestClean_MissingEndPatternDegrades(t *testing.T) {
	// End pattern that matches nothing: everything after the start row is
	// kept and the clean still succeeds.
	res := Clean(invoiceFrame(), template.Patterns{
		Start: "description",
		End:   "grand total",
	}, quiet())
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 5, res.Frame.RowCount())
}

func TestClean_SkipPattern(t *testing.T) {
	res := Clean(invoiceFrame(), template.Patterns{Skip: `page \d+ of \d+`}, quiet())
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 5, res.Frame.RowCount())
}

func TestClean_AllRowsSkippedFails(t *testing.T) {
	res := Clean(invoiceFrame(), template.Patterns{Skip: "."}, quiet())
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "all rows skipped", res.Reason)
}

func TestClean_NoPatternsIsIdentityPlusTidy(t *testing.T) {
	res := Clean(invoiceFrame(), template.Patterns{}, quiet())
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 6, res.Frame.RowCount())
}

func TestClean_Idempotent(t *testing.T) {
	patterns := template.Patterns{Start: "description", End: "subtotal"}
	once := Clean(invoiceFrame(), patterns, quiet())
	require.Equal(t, StatusSuccess, once.Status)

	twice := Clean(once.Frame, patterns, quiet())
	assert.Equal(t, StatusSuccess, twice.Status)
	assert.True(t, once.Frame.Equal(twice.Frame))
}

func TestClean_MalformedPatternIsNoOp(t *testing.T) {
	res := Clean(invoiceFrame(), template.Patterns{Start: "(unclosed"}, quiet())
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 6, res.Frame.RowCount())
}

func TestClean_CaseInsensitive(t *testing.T) {
	res := Clean(invoiceFrame(), template.Patterns{Start: "DESCRIPTION"}, quiet())
	assert.Equal(t, StatusSuccess, res.Status)
}

func TestClean_LowRetentionIsPartial(t *testing.T) {
	f := frame.New("0")
	for i := 0; i < 20; i++ {
		f.AppendRow(fmt.Sprintf("row %d", i))
	}

	// Start anchor at row 15 keeps 5 of 20 rows: below the retention ratio.
	res := Clean(f, template.Patterns{Start: "row 15"}, quiet())
	assert.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, "low row retention", res.Reason)
	assert.Equal(t, 5, res.Frame.RowCount())
}

func TestClean_SmallFrameAlwaysSucceeds(t *testing.T) {
	f := frame.New("0")
	for i := 0; i < 8; i++ {
		f.AppendRow(fmt.Sprintf("row %d", i))
	}

	// 1 of 8 rows survives, but frames of 10 rows or fewer are exempt from
	// the retention check.
	res := Clean(f, template.Patterns{Start: "row 7"}, quiet())
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 1, res.Frame.RowCount())
}

func TestClean_EmptyFrameFails(t *testing.T) {
	res := Clean(frame.New("0"), template.Patterns{}, quiet())
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "empty frame", res.Reason)
}

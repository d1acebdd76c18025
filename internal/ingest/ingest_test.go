package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/dataloom-cli/internal/tokenize"
)

func TestFromFileCSV(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "sales.csv")
	require.NoError(t, os.WriteFile(p, []byte("Date,Sales,Region\n2024-01-01,1500,North\n2024-01-02,2300,South\n"), 0o644))

	doc, err := FromFile(context.Background(), p, Options{})
	require.NoError(t, err)
	assert.Equal(t, "csv", doc.Format)
	assert.Equal(t, "sales.csv", doc.Name)
	assert.False(t, doc.Mailbox)

	res, err := doc.Tokenize()
	require.NoError(t, err)
	assert.Equal(t, tokenize.DelimComma, res.Delimiter)
	assert.Equal(t, []string{"Date", "Sales", "Region"}, res.Table.Columns())
	assert.Equal(t, 2, res.Table.NumRows())
}

func TestParseHTMLTable(t *testing.T) {
	page := `<html><body><h1>Report</h1><table>
<tr><th>Date</th><th>Sales</th></tr>
<tr><td>2024-01-01</td><td> 1,500 </td></tr>
</table></body></html>`
	doc, err := Parse("report.html", []byte(page), Options{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Date", "Sales"}, {"2024-01-01", "1,500"}}, doc.Records)
}

func TestParseHTMLVisibleText(t *testing.T) {
	page := "<html><head><style>p{}</style></head><body><pre>Date\tSales\n2024-01-01\t10\n2024-01-02\t20</pre><script>var x</script></body></html>"
	doc, err := Parse("page.html", []byte(page), Options{})
	require.NoError(t, err)
	require.Nil(t, doc.Records)
	assert.NotContains(t, doc.Text, "var x")

	res, err := doc.Tokenize()
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Sales"}, res.Table.Columns())
	assert.Equal(t, 2, res.Table.NumRows())
}

const mbox = `From alice@example.com Mon Mar  4 10:00:00 2024
From: Alice <alice@example.com>
To: bob@example.com
Subject: =?UTF-8?Q?Budget_Review?=
Date: Mon, 04 Mar 2024 10:00:00 +0000

Hello Bob,
>From the numbers, we are fine.

From bob@example.com Mon Mar  4 12:30:00 2024
From: bob@example.com
To: Alice <alice@example.com>
Subject: RE: Budget Review
Date: Mon, 04 Mar 2024 12:30:00 +0000
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="XYZ"

--XYZ
Content-Type: text/plain; charset=utf-8
Content-Transfer-Encoding: quoted-printable

Approved for the caf=C3=A9 budget.
--XYZ
Content-Type: text/html

<p>Approved</p>
--XYZ--
`

func TestMboxFromReaderIsSniffed(t *testing.T) {
	doc, err := FromReader(context.Background(), "", strings.NewReader(mbox), Options{})
	require.NoError(t, err)
	assert.Equal(t, "mbox", doc.Format)
	assert.True(t, doc.Mailbox)
	require.Len(t, doc.Records, 3)
	assert.Equal(t, MailColumns, doc.Records[0])
	assert.Equal(t, []string{
		"Alice <alice@example.com>", "bob@example.com", "Budget Review",
		"2024-03-04T10:00:00Z", "Hello Bob, From the numbers, we are fine.",
	}, doc.Records[1])
	assert.Equal(t, "RE: Budget Review", doc.Records[2][2])
	assert.Equal(t, "Approved for the café budget.", doc.Records[2][4])

	res, err := doc.Tokenize()
	require.NoError(t, err)
	assert.Equal(t, 2, res.Table.NumRows())
}

const brokenMessage = `From mallory@example.com Mon Mar  4 11:00:00 2024
From: mallory@example.com
this line has no colon
Subject: broken

body
`

func TestMboxSkipsUnreadableMessage(t *testing.T) {
	parts := strings.SplitN(mbox, "\nFrom bob@", 2)
	require.Len(t, parts, 2)
	mixed := parts[0] + "\n" + brokenMessage + "\nFrom bob@" + parts[1]

	doc, err := Parse("inbox.mbox", []byte(mixed), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Skipped)
	require.Len(t, doc.Records, 3)
	assert.Equal(t, "Budget Review", doc.Records[1][2])
	assert.Equal(t, "RE: Budget Review", doc.Records[2][2])
}

func TestMboxAllUnreadable(t *testing.T) {
	_, err := Parse("inbox.mbox", []byte(brokenMessage), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mbox message 1")
}

func TestParseEML(t *testing.T) {
	msg := "From: a@x.io\r\nTo: b@x.io\r\nSubject: Hi\r\nDate: Tue, 05 Mar 2024 08:00:00 +0100\r\n\r\nshort body\r\n"
	doc, err := Parse("", []byte(msg), Options{})
	require.NoError(t, err)
	assert.Equal(t, "eml", doc.Format)
	require.Len(t, doc.Records, 2)
	assert.Equal(t, "2024-03-05T07:00:00Z", doc.Records[1][3])
	assert.Equal(t, "short body", doc.Records[1][4])
}

func TestPreviewIsBounded(t *testing.T) {
	assert.Len(t, []rune(preview(strings.Repeat("word ", 100))), PreviewRunes)
	assert.Equal(t, "a b", preview("  a\n\n b "))
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Date", "Sales"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"2024-01-01", 10}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	doc, err := Parse("book.xlsx", buf.Bytes(), Options{})
	require.NoError(t, err)
	assert.Equal(t, "xlsx", doc.Format)
	assert.Equal(t, [][]string{{"Date", "Sales"}, {"2024-01-01", "10"}}, doc.Records)
	assert.Contains(t, doc.Name, "Sheet1")

	_, err = Parse("book.xlsx", buf.Bytes(), Options{Sheet: "Missing"})
	assert.ErrorContains(t, err, "Sheet1")
}

func TestParseDOCXTable(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = io.WriteString(w, `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`+
		`<w:p><w:r><w:t>Quarterly</w:t></w:r></w:p><w:tbl>`+
		`<w:tr><w:tc><w:p><w:r><w:t>Region</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Sales</w:t></w:r></w:p></w:tc></w:tr>`+
		`<w:tr><w:tc><w:p><w:r><w:t>North</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>10</w:t></w:r></w:p></w:tc></w:tr>`+
		`</w:tbl></w:body></w:document>`)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	doc, err := Parse("q.docx", buf.Bytes(), Options{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Region", "Sales"}, {"North", "10"}}, doc.Records)
}

func TestUnsupportedBinary(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	_, err := Parse("pic.png", png, Options{})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestFromReaderTimeout(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })
	_, err := FromReader(context.Background(), "slow.csv", pr, Options{Timeout: 20 * time.Millisecond})
	assert.ErrorIs(t, err, ErrIngestionTimeout)
}

func TestFromURLStalledBodyUnblocks(t *testing.T) {
	gone := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "a,b\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
		close(gone)
	}))
	defer srv.Close()

	_, err := FromURL(context.Background(), srv.URL+"/stall.csv", Options{Timeout: 50 * time.Millisecond})
	assert.ErrorIs(t, err, ErrIngestionTimeout)
	select {
	case <-gone:
	case <-time.After(2 * time.Second):
		t.Fatal("connection still open after timeout")
	}
}

func TestFromReaderSizeLimit(t *testing.T) {
	_, err := FromReader(context.Background(), "big.csv", strings.NewReader(strings.Repeat("a,b\n", 10)), Options{MaxBytes: 8})
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data.csv":
			_, _ = io.WriteString(w, "a,b\n1,2\n3,4\n")
		case "/slow":
			<-r.Context().Done()
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	doc, err := FromURL(context.Background(), srv.URL+"/data.csv", Options{})
	require.NoError(t, err)
	assert.Equal(t, "data.csv", doc.Name)
	assert.Equal(t, "csv", doc.Format)

	_, err = FromURL(context.Background(), srv.URL+"/missing", Options{})
	assert.ErrorContains(t, err, "404")

	_, err = FromURL(context.Background(), srv.URL+"/slow", Options{Timeout: 20 * time.Millisecond})
	assert.ErrorIs(t, err, ErrIngestionTimeout)

	_, err = FromURL(context.Background(), "ftp://example.com/x", Options{})
	assert.Error(t, err)
}

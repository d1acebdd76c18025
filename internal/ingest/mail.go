package ingest

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// MailColumns is the header of tables built from mail exports.
var MailColumns = []string{"From", "To", "Subject", "Date", "Body_Preview"}

// PreviewRunes bounds the Body_Preview column.
const PreviewRunes = 200

var headerLineRe = regexp.MustCompile(`(?m)^(From|To|Subject|Date|Message-ID|Received|Return-Path):`)

type mboxParser struct{}

func (mboxParser) CanParse(p Probe) bool {
	if p.Ext() == ".mbox" || p.Ext() == ".mbx" {
		return true
	}
	return p.Ext() == "" && bytes.HasPrefix(p.Head, []byte("From ")) && headerLineRe.Match(p.Head)
}

// Parse keeps every readable message. Unreadable ones are counted in
// Skipped; the mailbox fails only when none can be read.
func (mboxParser) Parse(_ Probe, _ Options, content []byte) (*Document, error) {
	recs := [][]string{MailColumns}
	skipped := 0
	var firstErr error
	for i, raw := range splitMbox(content) {
		row, err := messageRow(raw)
		if err != nil {
			skipped++
			if firstErr == nil {
				firstErr = fmt.Errorf("mbox message %d: %w", i+1, err)
			}
			continue
		}
		recs = append(recs, row)
	}
	if len(recs) == 1 && firstErr != nil {
		return nil, firstErr
	}
	return &Document{Format: "mbox", Records: recs, Mailbox: true, Skipped: skipped}, nil
}

type emlParser struct{}

func (emlParser) CanParse(p Probe) bool {
	if p.Ext() == ".eml" || p.Is("message/rfc822") {
		return true
	}
	if p.Ext() != "" {
		return false
	}
	// Headers must start on the first line.
	first := p.Head
	if i := bytes.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	return headerLineRe.Match(first) && len(headerLineRe.FindAll(p.Head, -1)) >= 2
}

func (emlParser) Parse(_ Probe, _ Options, content []byte) (*Document, error) {
	row, err := messageRow(content)
	if err != nil {
		return nil, err
	}
	return &Document{Format: "eml", Records: [][]string{MailColumns, row}, Mailbox: true}, nil
}

// splitMbox splits on "From " separator lines that start the file or follow
// a blank line, and unescapes ">From " quoting.
func splitMbox(content []byte) [][]byte {
	var msgs [][]byte
	var cur bytes.Buffer
	sc := bufio.NewScanner(bytes.NewReader(content))
	sc.Buffer(make([]byte, 0, 64<<10), 16<<20)
	prevBlank := true
	started := false
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(line, "From ") && prevBlank {
			if started && cur.Len() > 0 {
				msgs = append(msgs, append([]byte(nil), cur.Bytes()...))
			}
			cur.Reset()
			started = true
			prevBlank = false
			continue
		}
		if !started {
			prevBlank = line == ""
			continue
		}
		if strings.HasPrefix(line, ">From ") {
			line = line[1:]
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
		prevBlank = line == ""
	}
	if started && strings.TrimSpace(cur.String()) != "" {
		msgs = append(msgs, cur.Bytes())
	}
	return msgs
}

var wordDecoder = new(mime.WordDecoder)

func decodeHeader(h mail.Header, key string) string {
	v := h.Get(key)
	if s, err := wordDecoder.DecodeHeader(v); err == nil {
		v = s
	}
	return strings.TrimSpace(v)
}

// messageRow renders one RFC 5322 message as a MailColumns row.
func messageRow(raw []byte) ([]string, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}
	date := decodeHeader(msg.Header, "Date")
	if ts, err := msg.Header.Date(); err == nil {
		date = ts.UTC().Format(time.RFC3339)
	}
	body := readBody(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
	return []string{
		decodeHeader(msg.Header, "From"),
		decodeHeader(msg.Header, "To"),
		decodeHeader(msg.Header, "Subject"),
		date,
		preview(body),
	}, nil
}

// readBody prefers the first text/plain part and falls back to text/html
// rendered as text.
func readBody(contentType, encoding string, r io.Reader) string {
	mt, params, err := mime.ParseMediaType(contentType)
	if err != nil || contentType == "" {
		mt = "text/plain"
	}
	if strings.HasPrefix(mt, "multipart/") {
		mr := multipart.NewReader(r, params["boundary"])
		htmlBody := ""
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			body := readBody(part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"), part)
			pt, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
			switch {
			case body == "":
			case pt == "" || pt == "text/plain" || strings.HasPrefix(pt, "multipart/"):
				return body
			case pt == "text/html" && htmlBody == "":
				htmlBody = body
			}
		}
		return htmlBody
	}
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, r)
	}
	b, err := io.ReadAll(io.LimitReader(r, 1<<20))
	if err != nil && len(b) == 0 {
		return ""
	}
	switch {
	case mt == "text/html":
		if root, err := html.Parse(bytes.NewReader(b)); err == nil {
			return visibleText(root)
		}
		return string(b)
	case strings.HasPrefix(mt, "text/"):
		return string(b)
	default:
		return ""
	}
}

func preview(body string) string {
	s := strings.Join(strings.Fields(body), " ")
	if r := []rune(s); len(r) > PreviewRunes {
		s = string(r[:PreviewRunes])
	}
	return s
}

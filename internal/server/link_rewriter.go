package server

import (
	"bytes"
	"io"
	"net/url"

	"github.com/crumbway/crumbway/internal/metrics"
)

// maxCandidateLen bounds how far past an anchor we look for the closing
// quote. Anything longer is passed through unrewritten.
const maxCandidateLen = 2048

// linkAnchors are the attribute and script patterns the rewriter recognizes.
// The final byte of each anchor is the quote that closes its value.
var linkAnchors = [][]byte{
	[]byte(`href="`),
	[]byte(`href='`),
	[]byte(`src="`),
	[]byte(`src='`),
	[]byte(`window.open('`),
}

// LinkRewriter streams a textual body, rewriting proxied links that change
// upstream scheme or subdomain into handoff links, so that following them
// transfers the client's cookies before the origin switch. Links to other
// registrable domains, and anything that does not match exactly, pass
// through byte for byte. The rewriter holds back at most one undecided
// anchor plus maxCandidateLen bytes, so output is emitted incrementally as
// input arrives.
type LinkRewriter struct {
	src    io.ReadCloser
	codec  *PathCodec
	origin *url.URL

	pending []byte
	out     []byte
	readBuf []byte
	srcErr  error
}

func NewLinkRewriter(src io.ReadCloser, codec *PathCodec, origin *url.URL) *LinkRewriter {
	return &LinkRewriter{
		src:     src,
		codec:   codec,
		origin:  origin,
		readBuf: make([]byte, 32*1024),
	}
}

func (lr *LinkRewriter) Read(p []byte) (int, error) {
	for len(lr.out) == 0 {
		if lr.srcErr != nil {
			return 0, lr.srcErr
		}

		n, err := lr.src.Read(lr.readBuf)
		if n > 0 {
			lr.pending = append(lr.pending, lr.readBuf[:n]...)
		}
		if err != nil {
			lr.srcErr = err
		}

		lr.transform(lr.srcErr != nil)
	}

	n := copy(p, lr.out)
	lr.out = lr.out[n:]
	return n, nil
}

// Close closes the underlying body, aborting the upstream transfer if the
// consumer stops reading early.
func (lr *LinkRewriter) Close() error {
	return lr.src.Close()
}

// transform scans the pending buffer, appending everything that can no
// longer be part of a match to the output. When final is false, a suffix
// that could still grow into a match is held back for the next read.
func (lr *LinkRewriter) transform(final bool) {
	b := lr.pending

	for {
		i, anchor := findEarliestAnchor(b)
		if anchor == nil {
			keep := 0
			if !final {
				keep = partialAnchorLen(b)
			}
			lr.out = append(lr.out, b[:len(b)-keep]...)
			b = b[len(b)-keep:]
			break
		}

		lr.out = append(lr.out, b[:i]...)
		b = b[i:]

		quote := anchor[len(anchor)-1]
		rest := b[len(anchor):]

		end := bytes.IndexByte(rest, quote)
		if end < 0 && !final && len(rest) < maxCandidateLen {
			break // the value may still be completed by the next chunk
		}
		if end < 0 || end > maxCandidateLen {
			lr.out = append(lr.out, anchor...)
			b = b[len(anchor):]
			continue
		}

		lr.out = append(lr.out, anchor...)
		lr.out = append(lr.out, lr.rewriteCandidate(rest[:end])...)
		b = b[len(anchor)+end:]
	}

	lr.pending = append(lr.pending[:0], b...)
}

// rewriteCandidate decides the fate of a single quoted value. Only a
// proxied absolute URL whose scheme or host differs from the current
// origin, within the same registrable domain, is rewritten.
func (lr *LinkRewriter) rewriteCandidate(candidate []byte) []byte {
	target, err := lr.codec.Decode(string(candidate))
	if err != nil {
		return candidate
	}

	if lr.codec.SameOrigin(target, lr.origin) {
		return candidate
	}
	if !lr.codec.SameRegistrableDomain(target, lr.origin) {
		return candidate
	}

	metrics.Tracker.TrackLinkRewrite()
	return []byte(lr.codec.Encode(lr.origin) + "?" + HandoffParam + "=" + lr.codec.EncodeHandoffValue(target))
}

func findEarliestAnchor(b []byte) (int, []byte) {
	index := -1
	var found []byte
	for _, anchor := range linkAnchors {
		if i := bytes.Index(b, anchor); i >= 0 && (index < 0 || i < index) {
			index = i
			found = anchor
		}
	}
	return index, found
}

// partialAnchorLen returns the length of the longest suffix of b that is a
// proper prefix of any anchor, the amount that must be held back across a
// chunk boundary.
func partialAnchorLen(b []byte) int {
	longest := 0
	for _, anchor := range linkAnchors {
		limit := min(len(anchor)-1, len(b))
		for k := limit; k > longest; k-- {
			if bytes.Equal(b[len(b)-k:], anchor[:k]) {
				longest = k
				break
			}
		}
	}
	return longest
}

// Package attest renders a verification report into a canonical,
// content-addressed, signable text document, so a grader can publish a
// tamper-evident record of a student run. Canonical bytes are strict:
// UTF-8, LF line endings, no BOM, fixed section order, sorted keys.
package attest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"uclab.dev/conncheck/checkpoint"
)

const (
	Preamble  = "-----BEGIN CONNCHECK REPORT-----"
	Postamble = "-----END CONNCHECK REPORT-----"

	// SpecID names the document revision; bump on format changes.
	SpecID = "conncheck-report-1"
)

// RuleLine is one rule outcome in a report document. Rules keep the
// definition's declared order; they are the only unsorted section.
type RuleLine struct {
	ID     string
	Status string
}

// Document is the in-memory form used to produce canonical bytes.
type Document struct {
	Meta   map[string]string
	Result map[string]string
	Rules  []RuleLine
	Crypto map[string]string
}

// FromReport builds a Document from an evaluated report. Crypto fields
// are filled in by the signing step.
func FromReport(r *checkpoint.Report) Document {
	satisfied, required := r.Counts()
	verdict := "fail"
	if r.Pass {
		verdict = "pass"
	}
	doc := Document{
		Meta: map[string]string{
			"Definition": r.Definition,
			"Spec":       SpecID,
		},
		Result: map[string]string{
			"Required":  strconv.Itoa(required),
			"Satisfied": strconv.Itoa(satisfied),
			"Verdict":   verdict,
		},
	}
	for _, o := range r.Outcomes {
		doc.Rules = append(doc.Rules, RuleLine{ID: o.RuleID, Status: string(o.Status)})
	}
	return doc
}

// Render produces canonical report bytes: preamble, META, RESULT, RULES,
// CRYPTO, postamble, no trailing newline.
func Render(doc Document) ([]byte, error) {
	if doc.Meta["Definition"] == "" {
		return nil, errors.New("attest: META missing Definition")
	}
	if len(doc.Rules) == 0 {
		return nil, errors.New("attest: no rule lines")
	}

	var sb strings.Builder
	sb.WriteString(Preamble)
	sb.WriteString("\n")

	writeSorted := func(name string, pairs map[string]string) {
		sb.WriteString(name)
		sb.WriteString("\n")
		keys := make([]string, 0, len(pairs))
		for k := range pairs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(k)
			sb.WriteString(": ")
			sb.WriteString(pairs[k])
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	writeSorted("META", doc.Meta)
	writeSorted("RESULT", doc.Result)

	sb.WriteString("RULES\n")
	for _, r := range doc.Rules {
		sb.WriteString(r.ID)
		sb.WriteString(": ")
		sb.WriteString(r.Status)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	writeSorted("CRYPTO", doc.Crypto)

	sb.WriteString(Postamble)
	return []byte(sb.String()), nil
}

// Attestation is a parsed canonical report. Signed covers the bytes
// from the preamble through the end of the RULES section, inclusive.
type Attestation struct {
	Doc    Document
	Raw    []byte
	Signed []byte
}

// Parse parses canonical report bytes, rejecting non-canonical input.
func Parse(data []byte) (*Attestation, error) {
	if !utf8.Valid(data) {
		return nil, errors.New("attest: report must be valid UTF-8")
	}
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		return nil, errors.New("attest: BOM not allowed")
	}
	if bytes.Contains(data, []byte("\r")) {
		return nil, errors.New("attest: CR line endings not allowed")
	}
	if len(data) > 0 && data[len(data)-1] == '\n' {
		return nil, errors.New("attest: trailing newline not allowed")
	}
	if !bytes.HasPrefix(data, []byte(Preamble+"\n")) {
		return nil, errors.New("attest: missing preamble")
	}
	if !bytes.HasSuffix(data, []byte(Postamble)) {
		return nil, errors.New("attest: missing postamble")
	}

	doc := Document{
		Meta:   map[string]string{},
		Result: map[string]string{},
		Crypto: map[string]string{},
	}
	sectionOrder := []string{"META", "RESULT", "RULES", "CRYPTO"}
	sectionIdx := -1
	signedEnd := -1
	offset := 0

	reader := bufio.NewReader(bytes.NewReader(data))
	for {
		raw, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		offset += len(raw)
		line := strings.TrimRight(raw, "\n")

		switch {
		case line == Preamble || line == Postamble || line == "":
		case line == "META" || line == "RESULT" || line == "RULES" || line == "CRYPTO":
			want := sectionIdx + 1
			if want >= len(sectionOrder) || sectionOrder[want] != line {
				return nil, fmt.Errorf("attest: section %s out of order", line)
			}
			sectionIdx = want
		default:
			k, v, ok := strings.Cut(line, ": ")
			if !ok || sectionIdx < 0 {
				return nil, fmt.Errorf("attest: malformed line %q", line)
			}
			switch sectionOrder[sectionIdx] {
			case "META":
				doc.Meta[k] = v
			case "RESULT":
				doc.Result[k] = v
			case "RULES":
				doc.Rules = append(doc.Rules, RuleLine{ID: k, Status: v})
				signedEnd = offset
			case "CRYPTO":
				doc.Crypto[k] = v
			}
		}
		if err == io.EOF {
			break
		}
	}

	if doc.Meta["Spec"] != SpecID {
		return nil, fmt.Errorf("attest: unsupported Spec %q", doc.Meta["Spec"])
	}
	if len(doc.Rules) == 0 {
		return nil, errors.New("attest: RULES section empty")
	}
	if signedEnd < 0 {
		signedEnd = len(data)
	}

	// Canonical-form enforcement: render of the parsed document must
	// round-trip to the input bytes. This also rejects unsorted or
	// duplicate keys, since maps render sorted and deduplicated.
	rendered, err := Render(doc)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(rendered, data) {
		return nil, errors.New("attest: input is not in canonical form")
	}

	return &Attestation{Doc: doc, Raw: data, Signed: data[:signedEnd]}, nil
}

// CID returns the CIDv1 (raw multicodec, sha2-256 multihash) of the
// canonical report bytes.
func (a *Attestation) CID() (string, error) {
	return CIDv1RawSHA256(a.Raw)
}

// CIDv1RawSHA256 returns a CIDv1 string (raw + sha2-256) for data.
func CIDv1RawSHA256(data []byte) (string, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return cid.NewCidV1(cid.Raw, sum).String(), nil
}

// CIDv1RawSHA256CID returns the CID value form used by the archive.
func CIDv1RawSHA256CID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

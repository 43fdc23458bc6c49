package suggest

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/FranksOps/keyvo/internal/provider"
)

// jsonpPrefix is the callback envelope the video suggest endpoint uses for
// script-tag clients.
const jsonpPrefix = "window.google.ac.h("

// Normalize turns a provider's raw response text into its ordered suggestion
// list. It is a pure function of its arguments. On success the list is never
// nil.
func Normalize(p provider.Provider, raw string) ([]string, error) {
	switch p {
	case provider.WebSearch:
		return normalizeToolbarXML(raw)
	case provider.VideoSearch:
		return normalizeSuggestJSON(raw)
	}
	return nil, fmt.Errorf("suggest: %w: %v", provider.ErrUnsupported, p)
}

type toolbarSuggestion struct {
	Data string `xml:"data,attr"`
}

type toolbarEntry struct {
	Suggestions []toolbarSuggestion `xml:"suggestion"`
}

type toolbarDocument struct {
	Entries []toolbarEntry `xml:"CompleteSuggestion"`
}

// normalizeToolbarXML reads <toplevel><CompleteSuggestion><suggestion data=""/>
// documents. Only direct children of the root count, and only the first
// suggestion of each entry.
func normalizeToolbarXML(raw string) ([]string, error) {
	fail := func(err error) error {
		return &ParseError{Provider: provider.WebSearch, Format: "XML", Err: err}
	}

	dec := xml.NewDecoder(strings.NewReader(strings.TrimPrefix(raw, "\ufeff")))
	// The body was decoded to UTF-8 upstream; ignore the declared charset.
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	root, err := rootElement(dec)
	if err != nil {
		return nil, fail(err)
	}

	var doc toolbarDocument
	if err := dec.DecodeElement(&doc, &root); err != nil {
		return nil, fail(err)
	}
	if err := expectEOF(dec); err != nil {
		return nil, fail(err)
	}

	out := make([]string, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		if len(e.Suggestions) == 0 || e.Suggestions[0].Data == "" {
			continue
		}
		out = append(out, e.Suggestions[0].Data)
	}
	return out, nil
}

func rootElement(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return xml.StartElement{}, errors.New("no root element")
			}
			return xml.StartElement{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return t, nil
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return xml.StartElement{}, errors.New("text before root element")
			}
		}
	}
}

func expectEOF(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return fmt.Errorf("junk after document element: <%s>", t.Name.Local)
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return errors.New("junk after document element")
			}
		}
	}
}

// normalizeSuggestJSON reads ["query", ["s1", "s2", ...], ...], optionally
// wrapped in a JSONP callback.
func normalizeSuggestJSON(raw string) ([]string, error) {
	payload, err := unwrapJSONP(raw)
	if err != nil {
		return nil, &ParseError{Provider: provider.VideoSearch, Format: "JSON", Err: err}
	}

	var doc any
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, &ParseError{Provider: provider.VideoSearch, Format: "JSON", Err: err}
	}

	out := []string{}
	top, ok := doc.([]any)
	if !ok || len(top) < 2 {
		return out, nil
	}
	inner, ok := top[1].([]any)
	if !ok {
		return out, nil
	}
	for _, v := range inner {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// unwrapJSONP strips the callback envelope by taking everything between the
// first '(' and the last ')'. A payload containing its own parentheses after
// the final array would confuse this; kept as-is for compatibility. Leading
// whitespace before the callback name is tolerated.
func unwrapJSONP(raw string) (string, error) {
	raw = strings.TrimLeftFunc(raw, unicode.IsSpace)
	if !strings.HasPrefix(raw, jsonpPrefix) {
		return raw, nil
	}
	open := strings.Index(raw, "(")
	end := strings.LastIndex(raw, ")")
	if end <= open {
		return "", errors.New("unterminated JSONP envelope")
	}
	return raw[open+1 : end], nil
}

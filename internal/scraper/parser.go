package scraper

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pfrederiksen/weather-scrape/internal/weather"
	"golang.org/x/net/html"
)

// Column positions of the temperature cells within a table row. The site does
// not label cells, so this order is an assumption about its markup.
const (
	ColumnMax  = 0
	ColumnMin  = 1
	ColumnMean = 2

	// QualifyingCells is the number of leading cells read from each row
	QualifyingCells = 3
)

// Phase is the parser's position in the table structure
type Phase int

const (
	PhaseOutsideBody Phase = iota
	PhaseInBody
	PhaseInRow
	PhaseInCell
)

func (p Phase) String() string {
	switch p {
	case PhaseOutsideBody:
		return "outside-body"
	case PhaseInBody:
		return "in-body"
	case PhaseInRow:
		return "in-row"
	case PhaseInCell:
		return "in-cell"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// TokenKind identifies a markup event
type TokenKind int

const (
	StartTag TokenKind = iota
	EndTag
	Text
)

// Token is one markup event fed to Reduce
type Token struct {
	Kind     TokenKind
	Tag      string
	Title    string
	HasTitle bool
	Text     string
}

// State is the parser state for one document
type State struct {
	Phase       Phase
	Ordinal     int
	PendingDate string

	values [QualifyingCells]float64
	seen   [QualifyingCells]bool
}

// clearRow resets the per-row cell accumulators
func (s State) clearRow() State {
	s.Ordinal = 0
	s.values = [QualifyingCells]float64{}
	s.seen = [QualifyingCells]bool{}
	return s
}

// Reduce applies one token to the state. It returns the next state and, when
// the token completes a row's third temperature cell, the finished record.
func Reduce(s State, tok Token) (State, *weather.DailyRecord) {
	switch tok.Kind {
	case StartTag:
		return reduceStart(s, tok), nil
	case EndTag:
		return reduceEnd(s, tok), nil
	case Text:
		return reduceText(s, tok.Text)
	}
	return s, nil
}

func reduceStart(s State, tok Token) State {
	switch tok.Tag {
	case "tbody":
		if s.Phase == PhaseOutsideBody {
			s.Phase = PhaseInBody
		}
	case "abbr":
		if s.Phase == PhaseOutsideBody || !tok.HasTitle {
			return s
		}
		date, err := weather.ParseTitleDate(tok.Title)
		if err != nil {
			s.PendingDate = ""
			return s
		}
		s.PendingDate = date
	case "tr":
		if s.Phase == PhaseOutsideBody {
			return s
		}
		s = s.clearRow()
		s.Phase = PhaseInRow
	case "td":
		if s.Phase == PhaseInRow && s.Ordinal < QualifyingCells {
			s.Phase = PhaseInCell
		}
	}
	return s
}

func reduceEnd(s State, tok Token) State {
	switch tok.Tag {
	case "td":
		if s.Phase == PhaseInRow || s.Phase == PhaseInCell {
			s.Phase = PhaseInRow
			s.Ordinal++
		}
	case "tr":
		if s.Phase == PhaseInRow || s.Phase == PhaseInCell {
			s = s.clearRow()
			s.Phase = PhaseInBody
			s.PendingDate = ""
		}
	}
	return s
}

func reduceText(s State, text string) (State, *weather.DailyRecord) {
	if s.Phase != PhaseInCell || s.PendingDate == "" {
		return s, nil
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		// Missing or flagged cell
		return s, nil
	}

	s.values[s.Ordinal] = value
	s.seen[s.Ordinal] = true
	if s.Ordinal != ColumnMean {
		return s, nil
	}

	date := s.PendingDate
	s.PendingDate = ""
	if !s.seen[ColumnMax] || !s.seen[ColumnMin] {
		return s, nil
	}

	return s, &weather.DailyRecord{
		Date: date,
		Max:  s.values[ColumnMax],
		Min:  s.values[ColumnMin],
		Mean: s.values[ColumnMean],
	}
}

// Parse reads one HTML document and returns the records found in its table.
func Parse(r io.Reader) (weather.Mapping, error) {
	records := weather.NewMapping()
	z := html.NewTokenizer(r)
	var s State

	for {
		tt := z.Next()
		var tok Token

		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return records, fmt.Errorf("tokenizing HTML: %w", err)
			}
			return records, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			tok = startToken(z)
		case html.EndTagToken:
			name, _ := z.TagName()
			tok = Token{Kind: EndTag, Tag: string(name)}
		case html.TextToken:
			tok = Token{Kind: Text, Text: string(z.Text())}
		default:
			continue
		}

		var rec *weather.DailyRecord
		s, rec = Reduce(s, tok)
		if rec != nil {
			records[rec.Date] = *rec
		}
	}
}

// startToken builds a StartTag token, keeping only the title attribute
func startToken(z *html.Tokenizer) Token {
	name, hasAttr := z.TagName()
	tok := Token{Kind: StartTag, Tag: string(name)}

	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		if string(key) == "title" {
			tok.Title = string(val)
			tok.HasTitle = true
			break
		}
	}
	return tok
}

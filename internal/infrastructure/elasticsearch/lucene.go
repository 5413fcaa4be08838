package elasticsearch

import (
	"fmt"
	"regexp/syntax"
	"strconv"
	"strings"

	"github.com/oksasatya/staff-directory/internal/domain/repository"
)

// Lucene regexps always match the whole term, so a filter is rewritten into
// an equivalent whole-term pattern: unanchored ends get ".*", "^" and "$" at
// the ends of a branch are dropped. Constructs Lucene cannot express
// (assertions in the middle, word boundaries, case folding) are rejected.
func luceneRegexp(filter string) (string, error) {
	re, err := syntax.Parse(filter, syntax.Perl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", repository.ErrInvalidFilter, err)
	}

	branches := []*syntax.Regexp{re}
	if re.Op == syntax.OpAlternate {
		branches = re.Sub
	}
	parts := make([]string, 0, len(branches))
	for _, b := range branches {
		p, err := luceneBranch(b)
		if err != nil {
			return "", err
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, "|"), nil
}

func luceneBranch(re *syntax.Regexp) (string, error) {
	nodes := []*syntax.Regexp{re}
	if re.Op == syntax.OpConcat {
		nodes = re.Sub
	}

	anchoredStart, anchoredEnd := false, false
	if len(nodes) > 0 && nodes[0].Op == syntax.OpBeginText {
		anchoredStart = true
		nodes = nodes[1:]
	}
	if len(nodes) > 0 && nodes[len(nodes)-1].Op == syntax.OpEndText {
		anchoredEnd = true
		nodes = nodes[:len(nodes)-1]
	}

	var sb strings.Builder
	if !anchoredStart {
		sb.WriteString(".*")
	}
	sb.WriteByte('(')
	for _, n := range nodes {
		if err := writeLucene(&sb, n); err != nil {
			return "", err
		}
	}
	sb.WriteByte(')')
	if !anchoredEnd {
		sb.WriteString(".*")
	}
	return sb.String(), nil
}

func unsupported(what string) error {
	return fmt.Errorf("%w: %s is not supported by the search index", repository.ErrInvalidFilter, what)
}

func writeLucene(sb *strings.Builder, re *syntax.Regexp) error {
	switch re.Op {
	case syntax.OpEmptyMatch:
		sb.WriteString("()")
	case syntax.OpLiteral:
		if re.Flags&syntax.FoldCase != 0 {
			return unsupported("case-insensitive matching")
		}
		for _, r := range re.Rune {
			writeLuceneRune(sb, r)
		}
	case syntax.OpCharClass:
		if len(re.Rune) == 0 {
			return unsupported("an empty character class")
		}
		sb.WriteByte('[')
		for i := 0; i+1 < len(re.Rune); i += 2 {
			writeClassRune(sb, re.Rune[i])
			if re.Rune[i+1] != re.Rune[i] {
				sb.WriteByte('-')
				writeClassRune(sb, re.Rune[i+1])
			}
		}
		sb.WriteByte(']')
	case syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		sb.WriteByte('.')
	case syntax.OpCapture:
		sb.WriteByte('(')
		if err := writeLucene(sb, re.Sub[0]); err != nil {
			return err
		}
		sb.WriteByte(')')
	case syntax.OpStar, syntax.OpPlus, syntax.OpQuest, syntax.OpRepeat:
		sb.WriteByte('(')
		if err := writeLucene(sb, re.Sub[0]); err != nil {
			return err
		}
		sb.WriteByte(')')
		switch re.Op {
		case syntax.OpStar:
			sb.WriteByte('*')
		case syntax.OpPlus:
			sb.WriteByte('+')
		case syntax.OpQuest:
			sb.WriteByte('?')
		default:
			sb.WriteString("{" + strconv.Itoa(re.Min))
			switch {
			case re.Max == -1:
				sb.WriteString(",")
			case re.Max != re.Min:
				sb.WriteString("," + strconv.Itoa(re.Max))
			}
			sb.WriteByte('}')
		}
	case syntax.OpConcat:
		for _, sub := range re.Sub {
			if err := writeLucene(sb, sub); err != nil {
				return err
			}
		}
	case syntax.OpAlternate:
		sb.WriteByte('(')
		for i, sub := range re.Sub {
			if i > 0 {
				sb.WriteByte('|')
			}
			if err := writeLucene(sb, sub); err != nil {
				return err
			}
		}
		sb.WriteByte(')')
	case syntax.OpBeginText, syntax.OpEndText, syntax.OpBeginLine, syntax.OpEndLine:
		return unsupported("an anchor inside the pattern")
	case syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return unsupported("a word boundary")
	default:
		return unsupported(re.Op.String())
	}
	return nil
}

// Every character with an operator meaning in Lucene's full syntax,
// including the optional @ & ~ # < > operators.
const luceneReserved = `.?+*|{}[]()"\#@&<>~`

func writeLuceneRune(sb *strings.Builder, r rune) {
	if strings.ContainsRune(luceneReserved, r) {
		sb.WriteByte('\\')
	}
	sb.WriteRune(r)
}

func writeClassRune(sb *strings.Builder, r rune) {
	if strings.ContainsRune(`\]^-[`, r) {
		sb.WriteByte('\\')
	}
	sb.WriteRune(r)
}

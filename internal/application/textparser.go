package application

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	gmtext "github.com/yuin/goldmark/text"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ericfisherdev/chargepanel/internal/domain/model"
)

// labelField is the Place field a bold label maps to.
type labelField int

const (
	fieldHighlight labelField = iota
	fieldAddress
	fieldDescription
	fieldCategory
	fieldDistance
	fieldTravelTime
	fieldRating
)

// labelKeywords are matched against the diacritic-folded, lower-cased label.
// The first matching group wins.
var labelKeywords = []struct {
	field    labelField
	keywords []string
}{
	{fieldAddress, []string{"dia chi", "address", "vi tri", "location"}},
	{fieldDescription, []string{"mo ta", "description", "gioi thieu", "about", "overview", "summary"}},
	{fieldCategory, []string{"loai", "danh muc", "category", "type"}},
	{fieldDistance, []string{"khoang cach", "distance"}},
	{fieldTravelTime, []string{"thoi gian", "di chuyen", "travel", "duration"}},
	{fieldRating, []string{"danh gia", "rating", "diem"}},
}

var (
	numberPattern   = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	distancePattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(km|m)\b`)
)

// inlineRun is a piece of a rendered line; strong marks **bold** text.
type inlineRun struct {
	strong bool
	text   string
}

// textLine is one logical line of the parsed document. bullet is set on the
// first line of a list item; depth is the list nesting level, 0 outside lists.
type textLine struct {
	bullet bool
	depth  int
	runs   []inlineRun
}

// label splits a line into a leading bold label and the trailing value.
// ok is false when the line does not start with bold text.
func (l textLine) label() (label, value string, ok bool) {
	i := 0
	for i < len(l.runs) && !l.runs[i].strong && strings.TrimSpace(l.runs[i].text) == "" {
		i++
	}
	if i >= len(l.runs) || !l.runs[i].strong {
		return "", "", false
	}

	var b strings.Builder
	for _, r := range l.runs[i+1:] {
		b.WriteString(r.text)
	}
	return strings.TrimSpace(l.runs[i].text), b.String(), true
}

func (l textLine) plain() string {
	var b strings.Builder
	for _, r := range l.runs {
		b.WriteString(r.text)
	}
	return strings.TrimSpace(b.String())
}

// ParseText extracts places from Markdown-like bullet text such as LLM-written
// station descriptions. Each bullet starting with a bold name opens a place;
// following "**Label:** value" lines fill its fields and plain lines extend its
// description. When places are written as "**Name:** text", a same-level
// bullet of that form starts the next place. Malformed input never fails;
// unmatched text is dropped.
func (n *PlaceNormalizer) ParseText(src string) []model.Place {
	src = normalizeLineEndings(src)
	if src == "" || !strings.Contains(src, "**") {
		return nil
	}

	lines := n.textLines([]byte(src))

	var places []model.Place
	var current *model.Place
	// A block opened by "**Name:** text" makes its same-level siblings of
	// that form places too.
	var labeledOpener bool
	var openerDepth int
	flush := func() {
		if current != nil && current.Name != "" {
			places = append(places, *current)
		}
		current = nil
	}

	for _, line := range lines {
		label, value, hasLabel := line.label()
		if hasLabel {
			label, value = splitBoldLabel(label, value, current != nil)
		}

		title := hasLabel && isBlockTitle(label, value)
		namedLabel := hasLabel && !title && classifyLabel(label) == fieldHighlight &&
			(current == nil || (labeledOpener && line.depth == openerDepth))

		if line.bullet && (title || namedLabel) {
			flush()
			current = &model.Place{Name: n.clean(strings.TrimRight(label, ": "))}
			if rest := n.clean(strings.TrimLeft(value, " :-–—")); rest != "" {
				current.Description = rest
			}
			labeledOpener = namedLabel
			openerDepth = line.depth
			continue
		}

		if current == nil {
			continue
		}

		if hasLabel {
			n.applyLabel(current, label, value)
			continue
		}

		if text := n.clean(line.plain()); text != "" {
			appendDescription(current, text)
		}
	}
	flush()

	return dedupeByName(places)
}

// splitBoldLabel handles a bold run that swallowed its value, as in
// "**Địa chỉ: 12 Le Loi**". The run is split at its first colon when the part
// before it is a known field, or when inBlock is set.
func splitBoldLabel(label, value string, inBlock bool) (string, string) {
	k := strings.Index(label, ":")
	if k <= 0 || k == len(label)-1 {
		return label, value
	}
	head := strings.TrimSpace(label[:k])
	if !inBlock && classifyLabel(head) == fieldHighlight {
		return label, value
	}
	return head + ":", strings.TrimSpace(label[k+1:]) + value
}

// isBlockTitle reports whether a bold token names a place rather than labels a
// field: the bold text carries no trailing colon and no colon follows it.
func isBlockTitle(label, value string) bool {
	if strings.HasSuffix(label, ":") {
		return false
	}
	return !strings.HasPrefix(strings.TrimSpace(value), ":")
}

func (n *PlaceNormalizer) applyLabel(p *model.Place, label, value string) {
	label = strings.TrimSpace(strings.TrimRight(label, ": "))
	value = n.clean(strings.TrimLeft(strings.TrimSpace(value), ":"))
	if label == "" || value == "" {
		return
	}

	switch classifyLabel(label) {
	case fieldAddress:
		if p.Address == "" {
			p.Address = value
		}
	case fieldDescription:
		appendDescription(p, value)
	case fieldCategory:
		if p.Category == "" {
			p.Category = value
		}
	case fieldDistance:
		p.Distance = parseDistanceText(value)
	case fieldTravelTime:
		if minutes, ok := parseMinutes(value); ok {
			p.TravelTimeMinutes = &minutes
		} else {
			p.Highlights = append(p.Highlights, label+": "+value)
		}
	case fieldRating:
		if rating, ok := firstNumber(value); ok {
			p.Rating = &rating
		} else {
			p.Highlights = append(p.Highlights, label+": "+value)
		}
	default:
		p.Highlights = append(p.Highlights, n.clean(label)+": "+value)
	}
}

func classifyLabel(label string) labelField {
	folded := foldLabel(label)
	for _, group := range labelKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(folded, kw) {
				return group.field
			}
		}
	}
	return fieldHighlight
}

// foldLabel lower-cases s and strips Vietnamese diacritics so "Địa chỉ" and
// "dia chi" compare equal.
func foldLabel(s string) string {
	// Chained transformers carry state, so build one per call.
	chain := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(chain, strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}
	folded = strings.ReplaceAll(folded, "đ", "d")
	return strings.Join(strings.Fields(folded), " ")
}

func appendDescription(p *model.Place, text string) {
	if p.Description == "" {
		p.Description = text
		return
	}
	p.Description += "\n" + text
}

// textLines parses src as Markdown and flattens paragraphs into lines, marking
// the first line of every list item as a bullet.
func (n *PlaceNormalizer) textLines(src []byte) []textLine {
	doc := n.md.Parser().Parse(gmtext.NewReader(src))

	var lines []textLine
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node.Kind() {
		case ast.KindParagraph, ast.KindTextBlock:
			_, inItem := node.Parent().(*ast.ListItem)
			bullet := inItem && node.Parent().FirstChild() == node
			lines = append(lines, blockLines(node, src, bullet, listDepth(node))...)
			return ast.WalkSkipChildren, nil
		case ast.KindHeading, ast.KindCodeBlock, ast.KindFencedCodeBlock, ast.KindHTMLBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return lines
}

func listDepth(node ast.Node) int {
	depth := 0
	for p := node.Parent(); p != nil; p = p.Parent() {
		if p.Kind() == ast.KindListItem {
			depth++
		}
	}
	return depth
}

func blockLines(block ast.Node, src []byte, bullet bool, depth int) []textLine {
	var lines []textLine
	current := textLine{bullet: bullet, depth: depth}

	for child := block.FirstChild(); child != nil; child = child.NextSibling() {
		switch c := child.(type) {
		case *ast.Emphasis:
			current.runs = append(current.runs, inlineRun{strong: c.Level >= 2, text: inlineText(c, src)})
		case *ast.Text:
			current.runs = append(current.runs, inlineRun{text: string(c.Segment.Value(src))})
			if c.SoftLineBreak() || c.HardLineBreak() {
				lines = append(lines, current)
				current = textLine{depth: depth}
			}
		default:
			current.runs = append(current.runs, inlineRun{text: inlineText(c, src)})
		}
	}
	if len(current.runs) > 0 {
		lines = append(lines, current)
	}
	return lines
}

// inlineText returns the visible text of an inline node. Raw HTML is dropped.
func inlineText(node ast.Node, src []byte) string {
	switch t := node.(type) {
	case *ast.Text:
		s := string(t.Segment.Value(src))
		if t.SoftLineBreak() || t.HardLineBreak() {
			s += " "
		}
		return s
	case *ast.String:
		return string(t.Value)
	case *ast.AutoLink:
		return string(t.Label(src))
	case *ast.RawHTML:
		return ""
	}

	var b strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		b.WriteString(inlineText(child, src))
	}
	return b.String()
}

// normalizeLineEndings converts CRLF/CR to LF, trims the text and rewrites
// "•" bullets to Markdown list markers.
func normalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimSpace(s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, "•") {
			indent := line[:len(line)-len(trimmed)]
			lines[i] = indent + "*" + strings.TrimPrefix(trimmed, "•")
		}
	}
	return strings.Join(lines, "\n")
}

func parseDistanceText(value string) *model.Distance {
	d := &model.Distance{Text: value}
	match := distancePattern.FindStringSubmatch(strings.ToLower(value))
	if match == nil {
		return d
	}

	num, err := strconv.ParseFloat(strings.Replace(match[1], ",", ".", 1), 64)
	if err != nil {
		return d
	}
	if match[2] == "km" {
		d.Km = &num
	} else {
		d.Meters = &num
	}
	return d
}

func parseMinutes(value string) (float64, bool) {
	num, ok := firstNumber(value)
	if !ok {
		return 0, false
	}
	folded := foldLabel(value)
	if strings.Contains(folded, "gio") || strings.Contains(folded, "hour") {
		num *= 60
	}
	return num, true
}

func firstNumber(s string) (float64, bool) {
	match := numberPattern.FindString(s)
	if match == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.Replace(match, ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// newMarkdown builds the goldmark instance used for free-text payloads.
func newMarkdown() goldmark.Markdown {
	return goldmark.New(goldmark.WithExtensions(extension.GFM))
}

package extract

import (
	"regexp"
	"sort"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/islamic-data/internal/model"
	"github.com/sells-group/islamic-data/internal/resilience"
)

// Narrative field names.
const (
	FieldName  = "name"
	FieldIntro = "intro"
	FieldStory = "story"
)

// StorySelector selects the story body on a prophet page.
const StorySelector = ".et_pb_section.et_pb_section_1.et_section_regular"

// RuleKind tags how a subject's story page is parsed.
type RuleKind string

const (
	// RuleSectioned splits the page at its "Quranic Verses Mentioning X"
	// heading into a family-tree section and a verses section.
	RuleSectioned RuleKind = "sectioned"
	// RuleLines keeps every non-navigation text line.
	RuleLines RuleKind = "lines"
	// RuleRaw keeps each story section as markdown.
	RuleRaw RuleKind = "raw"
	// RuleName keeps only the display name; no page fetch.
	RuleName RuleKind = "name"
)

func (k RuleKind) valid() bool {
	switch k {
	case RuleSectioned, RuleLines, RuleRaw, RuleName:
		return true
	}
	return false
}

// DefaultNarrativeRules maps prophet page slugs to their parsing rule.
var DefaultNarrativeRules = map[string]RuleKind{
	"prophet-ayyub":          RuleSectioned,
	"prophet-yunus":          RuleLines,
	"story-of-prophet-lut":   RuleRaw,
	"prophet-idris":          RuleName,
	"prophet-dhul-kifl":      RuleName,
	"prophet-nuh":            RuleName,
	"prophet-al-yasa":        RuleName,
	"prophet-yusuf":          RuleName,
	"prophet-saleh-story":    RuleName,
	"story-prophet-sulaiman": RuleName,
	"prophet-adam":           RuleName,
}

var (
	subjectNameRe   = regexp.MustCompile(`^(?:story-)?(?:of-)?(?:prophet-)?(.+)$`)
	versesHeadingRe = regexp.MustCompile(`Quranic Verses Mentioning\s\w+`)
	storyNumberRe   = regexp.MustCompile(`\d{1,3}\.\s`)
	listNumberRe    = regexp.MustCompile(`\d{1,2}\.`)
)

// NormalizeName turns a page slug into a display name:
// "story-of-prophet-lut" becomes "Lut", "prophet-dhul-kifl" "Dhul-Kifl".
func NormalizeName(tag string) string {
	m := subjectNameRe.FindStringSubmatch(tag)
	if m == nil {
		return TitleCase(tag)
	}
	return TitleCase(m[1])
}

// NarrativeRules is a validated {subject tag: rule} registry with a stub
// fallback for unregistered tags.
type NarrativeRules struct {
	rules     map[string]RuleKind
	converter *md.Converter
}

// NewNarrativeRules validates rules and returns the registry. Every tag
// must be non-empty and map to a known RuleKind.
func NewNarrativeRules(rules map[string]RuleKind) (*NarrativeRules, error) {
	tags := make([]string, 0, len(rules))
	for tag := range rules {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	cp := make(map[string]RuleKind, len(rules))
	for _, tag := range tags {
		kind := rules[tag]
		if strings.TrimSpace(tag) == "" {
			return nil, eris.New("extract: narrative rule with empty tag")
		}
		if !kind.valid() {
			return nil, eris.Errorf("extract: narrative rule %q has unknown kind %q", tag, kind)
		}
		cp[tag] = kind
	}
	return &NarrativeRules{rules: cp, converter: md.NewConverter("", true, nil)}, nil
}

// Lookup returns the rule for tag. ok is false for unregistered tags.
func (n *NarrativeRules) Lookup(tag string) (RuleKind, bool) {
	k, ok := n.rules[tag]
	return k, ok
}

// NeedsPage reports whether extracting tag requires fetching its story page.
func (n *NarrativeRules) NeedsPage(tag string) bool {
	k, ok := n.rules[tag]
	return ok && k != RuleName
}

// Stub is the fallback fragment for an unregistered subject: the normalized
// display name and nothing else.
func (n *NarrativeRules) Stub(tag string) model.Fragment {
	frag := model.NewFragment(tag, SourceProphetStory)
	frag.Fields[FieldName] = NormalizeName(tag)
	frag.Stub = true
	return frag
}

// Extract applies the registered rule for tag to its story page. doc may be
// nil for name-only rules. Unregistered tags yield the stub fragment together
// with a not_found error the caller may log; it is not a job failure.
func (n *NarrativeRules) Extract(tag string, doc *goquery.Document) (model.Fragment, error) {
	kind, ok := n.rules[tag]
	if !ok {
		return n.Stub(tag), resilience.NotFound(tag).WithEntity(tag)
	}

	frag := model.NewFragment(tag, SourceProphetStory)
	frag.Fields[FieldName] = NormalizeName(tag)
	if kind == RuleName {
		return frag, nil
	}
	if doc == nil {
		return model.Fragment{}, resilience.Format(resilience.ReasonMalformed,
			eris.Errorf("extract: rule %s for %q needs a story page", kind, tag))
	}

	sections := doc.Find(StorySelector)
	if sections.Length() == 0 {
		return model.Fragment{}, resilience.Format(resilience.ReasonMalformed,
			eris.Errorf("extract: no story section on page for %q", tag))
	}

	switch kind {
	case RuleSectioned:
		story, err := sectionedStory(sections)
		if err != nil {
			return model.Fragment{}, resilience.Format(resilience.ReasonMalformed, eris.Wrapf(err, "extract: sectioned story %q", tag))
		}
		frag.Fields[FieldStory] = story
	case RuleLines:
		frag.Fields[FieldStory] = storyLines(sections)
	case RuleRaw:
		var raw []string
		sections.Each(func(_ int, s *goquery.Selection) {
			raw = append(raw, strings.TrimSpace(n.converter.Convert(s)))
		})
		frag.Fields[FieldStory] = raw
	}
	return frag, nil
}

func sectionTexts(sections *goquery.Selection) string {
	texts := sections.Map(func(_ int, s *goquery.Selection) string {
		return s.Text()
	})
	return strings.Join(texts, " ")
}

func sectionedStory(sections *goquery.Selection) (map[string]any, error) {
	famKey := strings.TrimSpace(sections.First().Find("div strong").First().Text())
	if famKey == "" {
		return nil, eris.New("no family tree heading")
	}

	joined := sectionTexts(sections)
	versesKey := versesHeadingRe.FindString(joined)
	if versesKey == "" {
		return nil, eris.New("no verses heading")
	}

	var cleaned []string
	for _, line := range splitNonEmpty(joined) {
		if strings.Contains(line, famKey) || strings.Contains(line, "Back To Prophet Stories") {
			continue
		}
		cleaned = append(cleaned, line)
	}

	split := -1
	for i, line := range cleaned {
		if strings.TrimSpace(line) == versesKey {
			split = i
			break
		}
	}
	if split < 0 {
		return nil, eris.Errorf("heading %q is not on its own line", versesKey)
	}
	return map[string]any{
		famKey:    append([]string(nil), cleaned[:split]...),
		versesKey: append([]string(nil), cleaned[split+1:]...),
	}, nil
}

func storyLines(sections *goquery.Selection) []string {
	var out []string
	for _, line := range splitNonEmpty(sectionTexts(sections)) {
		if strings.Contains(line, "Prophet Stories") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// ProphetListing is the parsed prophet-stories index page.
type ProphetListing struct {
	// Endpoints are the story page slugs in page order.
	Endpoints []string
	// Intros maps a display name ("Ayyub") to its index-page introduction.
	Intros map[string]string
	// About is the general introduction above the list.
	About []string
}

// ProphetIndex parses the prophet-stories index page.
func ProphetIndex(doc *goquery.Document) ProphetListing {
	listing := ProphetListing{Intros: map[string]string{}}

	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		if !strings.Contains(p.Text(), "Story of Prophet") {
			return
		}
		href, ok := p.Find("a").First().Attr("href")
		if !ok {
			return
		}
		parts := strings.Split(href, "/")
		if len(parts) < 2 {
			return
		}
		if slug := parts[len(parts)-2]; slug != "" {
			listing.Endpoints = append(listing.Endpoints, slug)
		}
	})

	doc.Find(".et_pb_text_inner").Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		if strings.Contains(text, "Surah Nahl Ayat") {
			lines := strings.Split(text, "\n")
			if len(lines) > 2 {
				listing.About = append(listing.About, lines[:len(lines)-2]...)
			}
		}
		if !listNumberRe.MatchString(text) {
			return
		}
		lines := strings.Split(text, "\n")
		var prophet string
		for _, line := range lines {
			if _, after, ok := strings.Cut(line, "Story of "); ok {
				prophet = strings.TrimSpace(after)
				break
			}
		}
		if prophet == "" {
			return
		}
		intro := storyNumberRe.ReplaceAllString(strings.Join(lines, ""), "")
		intro = strings.ReplaceAll(intro, "Story of "+prophet, "")
		intro = strings.ReplaceAll(intro, "\u00a0", "")
		listing.Intros[introKey(prophet)] = strings.TrimSpace(intro)
	})
	return listing
}

// Intro returns the index introduction for a page slug, if any.
func (l ProphetListing) Intro(tag string) (string, bool) {
	s, ok := l.Intros[introKey(NormalizeName(tag))]
	return s, ok
}

// IndexFragment is the base fragment for a prophet: display name and intro.
func (l ProphetListing) IndexFragment(tag string) model.Fragment {
	frag := model.NewFragment(tag, SourceProphetIndex)
	frag.Fields[FieldName] = NormalizeName(tag)
	if intro, ok := l.Intro(tag); ok {
		frag.Fields[FieldIntro] = intro
	}
	return frag
}

func introKey(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "Prophet ")
	return strings.ToLower(collapse(name))
}

package userapi

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/GriffinCanCode/scriptbridge/internal/userapi/bridge"
	"github.com/microcosm-cc/bluemonday"
)

const (
	maxIDLength          = 64
	maxNameLength        = 24
	maxDescriptionLength = 36
	maxVersionLength     = 36
	maxAuthorLength      = 56
	maxHomepageLength    = 1024
	maxScriptSize        = 9_000_000
)

var (
	idPattern     = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
	headerPattern = regexp.MustCompile(`^\s*/\*[\s\S]*?\*/`)
	tagPattern    = regexp.MustCompile(`@(\w+)[ \t]+([^\r\n]*)`)

	textPolicy = bluemonday.StrictPolicy()
)

// Descriptor is an immutable load request for one plugin
type Descriptor struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Version     string `json:"version" yaml:"version"`
	Author      string `json:"author" yaml:"author"`
	Homepage    string `json:"homepage" yaml:"homepage"`
	Script      string `json:"script" yaml:"-"`
}

// Info is a descriptor without its source
type Info struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Version     string `json:"version" yaml:"version"`
	Author      string `json:"author" yaml:"author"`
	Homepage    string `json:"homepage" yaml:"homepage"`
}

// Info returns the descriptor metadata
func (d Descriptor) Info() Info {
	return Info{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Version:     d.Version,
		Author:      d.Author,
		Homepage:    d.Homepage,
	}
}

// Validate checks the fields a load cannot do without
func (d Descriptor) Validate() error {
	switch {
	case d.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidDescriptor)
	case len(d.ID) > maxIDLength || !idPattern.MatchString(d.ID):
		return fmt.Errorf("%w: id %q must be 1-%d letters, digits, '.', '_' or '-'", ErrInvalidDescriptor, d.ID, maxIDLength)
	case strings.TrimSpace(d.Script) == "":
		return fmt.Errorf("%w: script is required", ErrInvalidDescriptor)
	case len(d.Script) > maxScriptSize:
		return fmt.Errorf("%w: script exceeds %d bytes", ErrInvalidDescriptor, maxScriptSize)
	}
	return nil
}

// Normalize fills missing metadata from the script header, strips markup
// and truncates text fields
func (d Descriptor) Normalize() Descriptor {
	header := ParseScriptHeader(d.Script)
	fill := func(field *string, key string) {
		if strings.TrimSpace(*field) == "" {
			*field = header[key]
		}
	}
	fill(&d.Name, "name")
	fill(&d.Description, "description")
	fill(&d.Version, "version")
	fill(&d.Author, "author")
	fill(&d.Homepage, "homepage")

	d.Name = cleanText(d.Name, maxNameLength)
	d.Description = cleanText(d.Description, maxDescriptionLength)
	d.Version = cleanText(d.Version, maxVersionLength)
	d.Author = cleanText(d.Author, maxAuthorLength)
	d.Homepage = cleanURL(d.Homepage, maxHomepageLength)
	if d.Name == "" {
		d.Name = d.ID
	}
	return d
}

// ParseScriptHeader reads @tags from the leading /** ... */ comment
func ParseScriptHeader(script string) map[string]string {
	out := make(map[string]string)
	block := headerPattern.FindString(script)
	if block == "" {
		return out
	}
	for _, m := range tagPattern.FindAllStringSubmatch(block, -1) {
		key := strings.ToLower(m[1])
		value := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(m[2]), "*/"))
		if _, seen := out[key]; !seen {
			out[key] = value
		}
	}
	return out
}

func cleanURL(s string, limit int) string {
	s = strings.TrimSpace(s)
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || len(s) > limit {
		return ""
	}
	return s
}

func cleanText(s string, limit int) string {
	s = bridge.PlainText(textPolicy, s)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

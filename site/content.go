// Package site holds the informational content of the public conference
// site: event details, agenda, speakers, partners and FAQ. Content lives in a
// YAML file that organisers edit; the server reloads it on change.
package site

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"
)

var ErrSpeakerNotFound = errors.New("speaker not found")

type Event struct {
	Name        string `yaml:"name" json:"name"`
	Tagline     string `yaml:"tagline" json:"tagline,omitempty"`
	Dates       string `yaml:"dates" json:"dates"`
	Venue       string `yaml:"venue" json:"venue"`
	Description string `yaml:"description" json:"description,omitempty"`
}

type Session struct {
	Slug     string   `yaml:"slug" json:"slug"`
	Day      int      `yaml:"day" json:"day"`
	Start    string   `yaml:"start" json:"start"`
	End      string   `yaml:"end" json:"end"`
	Title    string   `yaml:"title" json:"title"`
	Track    string   `yaml:"track" json:"track,omitempty"`
	Speakers []string `yaml:"speakers" json:"speakers,omitempty"` // speaker slugs
}

type Speaker struct {
	Slug         string   `yaml:"slug" json:"slug"`
	Name         string   `yaml:"name" json:"name"`
	Title        string   `yaml:"title" json:"title,omitempty"`
	Organization string   `yaml:"organization" json:"organization,omitempty"`
	Bio          string   `yaml:"bio" json:"bio,omitempty"`
	PhotoURL     string   `yaml:"photo_url" json:"photo_url,omitempty"`
	Topics       []string `yaml:"topics" json:"topics,omitempty"`
}

type Partner struct {
	Slug    string `yaml:"slug" json:"slug"`
	Name    string `yaml:"name" json:"name"`
	Tier    string `yaml:"tier" json:"tier"`
	URL     string `yaml:"url" json:"url,omitempty"`
	LogoURL string `yaml:"logo_url" json:"logo_url,omitempty"`
}

type FAQ struct {
	Question string `yaml:"question" json:"question"`
	Answer   string `yaml:"answer" json:"answer"`
}

// Content is one parsed, validated version of the site file.
type Content struct {
	Event    Event     `yaml:"event" json:"event"`
	Agenda   []Session `yaml:"agenda" json:"agenda"`
	Speakers []Speaker `yaml:"speakers" json:"speakers"`
	Partners []Partner `yaml:"partners" json:"partners"`
	FAQ      []FAQ     `yaml:"faq" json:"faq"`
}

// Speaker returns the speaker with the given slug.
func (c *Content) Speaker(s string) (Speaker, error) {
	for _, sp := range c.Speakers {
		if sp.Slug == s {
			return sp, nil
		}
	}
	return Speaker{}, ErrSpeakerNotFound
}

// SessionsBy lists the sessions a speaker appears in, in agenda order.
func (c *Content) SessionsBy(speakerSlug string) []Session {
	var out []Session
	for _, session := range c.Agenda {
		for _, s := range session.Speakers {
			if s == speakerSlug {
				out = append(out, session)
				break
			}
		}
	}
	return out
}

// PartnersByTier groups partners by tier, keeping file order inside a tier.
func (c *Content) PartnersByTier() map[string][]Partner {
	out := make(map[string][]Partner)
	for _, p := range c.Partners {
		out[p.Tier] = append(out[p.Tier], p)
	}
	return out
}

func LoadFile(path string) (*Content, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes site YAML, fills missing slugs and validates references.
func Parse(r io.Reader) (*Content, error) {
	var c Content
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to parse site content: %w", err)
	}
	c.fillSlugs()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Content) fillSlugs() {
	for i := range c.Speakers {
		if c.Speakers[i].Slug == "" {
			c.Speakers[i].Slug = slug.Make(c.Speakers[i].Name)
		}
	}
	for i := range c.Partners {
		if c.Partners[i].Slug == "" {
			c.Partners[i].Slug = slug.Make(c.Partners[i].Name)
		}
		c.Partners[i].Tier = strings.ToLower(strings.TrimSpace(c.Partners[i].Tier))
	}
	for i := range c.Agenda {
		if c.Agenda[i].Slug == "" {
			c.Agenda[i].Slug = slug.Make(fmt.Sprintf("day %d %s %s", c.Agenda[i].Day, c.Agenda[i].Start, c.Agenda[i].Title))
		}
	}
}

func (c *Content) validate() error {
	var errs []error
	if strings.TrimSpace(c.Event.Name) == "" {
		errs = append(errs, errors.New("event.name is required"))
	}

	speakers := make(map[string]bool, len(c.Speakers))
	for i, sp := range c.Speakers {
		if strings.TrimSpace(sp.Name) == "" {
			errs = append(errs, fmt.Errorf("speakers[%d]: name is required", i))
			continue
		}
		if !slug.IsSlug(sp.Slug) {
			errs = append(errs, fmt.Errorf("speakers[%d]: invalid slug %q", i, sp.Slug))
		}
		if speakers[sp.Slug] {
			errs = append(errs, fmt.Errorf("speakers[%d]: duplicate slug %q", i, sp.Slug))
		}
		speakers[sp.Slug] = true
	}

	sessions := make(map[string]bool, len(c.Agenda))
	for i, session := range c.Agenda {
		if strings.TrimSpace(session.Title) == "" {
			errs = append(errs, fmt.Errorf("agenda[%d]: title is required", i))
		}
		if sessions[session.Slug] {
			errs = append(errs, fmt.Errorf("agenda[%d]: duplicate slug %q", i, session.Slug))
		}
		sessions[session.Slug] = true
		for _, ref := range session.Speakers {
			if !speakers[ref] {
				errs = append(errs, fmt.Errorf("agenda[%d]: unknown speaker %q", i, ref))
			}
		}
	}

	for i, p := range c.Partners {
		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, fmt.Errorf("partners[%d]: name is required", i))
		}
	}
	for i, q := range c.FAQ {
		if strings.TrimSpace(q.Question) == "" || strings.TrimSpace(q.Answer) == "" {
			errs = append(errs, fmt.Errorf("faq[%d]: question and answer are required", i))
		}
	}
	return errors.Join(errs...)
}

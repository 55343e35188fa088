// Package prompt is a line-oriented front-end for tagging images one at a
// time from a terminal.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"metapho/internal/imagelist"
	"metapho/internal/service"
	"metapho/internal/tagging"
)

const promptText = "metapho> "

const helpText = `Commands:
  n, p        next / previous image
  N           toggle entry N of the current category
  +name       add tag "name"
  -name       remove tag "name" from this image
  =N name     rename entry N of the current category (past the end: new tag)
  c name      switch to category "name", creating it if needed
  x           clear this image's tags
  w           save tags
  q           save if needed and quit
  ?           this help`

// LineReader reads one line of input after showing a prompt.
// *liner.State satisfies it.
type LineReader interface {
	Prompt(prompt string) (string, error)
}

// Session runs the interactive tagging loop.
type Session struct {
	svc *service.Service
	in  LineReader
	out io.Writer
}

// NewSession creates a session tagging svc's images.
func NewSession(svc *service.Service, in LineReader, out io.Writer) *Session {
	return &Session{svc: svc, in: in, out: out}
}

// Run shows the current image and executes commands until q or end of
// input. Tags are saved on the way out if anything changed.
func (s *Session) Run() error {
	if s.svc.Images.Current() == nil {
		fmt.Fprintln(s.out, "No images to tag.")
		return nil
	}
	fmt.Fprintln(s.out, "Type ? for help.")
	s.show()
	for {
		line, err := s.in.Prompt(promptText)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(s.out)
				return s.save()
			}
			return fmt.Errorf("reading input: %w", err)
		}
		quit, err := s.Exec(line)
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			continue
		}
		if quit {
			return nil
		}
	}
}

// Exec runs one command line. It returns true when the session should end.
func (s *Session) Exec(line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	t := s.svc.Tagger
	cur := s.svc.Images.Current()

	switch {
	case line == "q":
		return true, s.save()
	case line == "w":
		return false, s.save()
	case line == "?" || line == "help":
		fmt.Fprintln(s.out, helpText)
		return false, nil
	case line == "n":
		if err := s.svc.Images.Advance(); err != nil {
			if errors.Is(err, imagelist.ErrOutOfRange) {
				fmt.Fprintln(s.out, "No more images.")
				return false, nil
			}
			return false, err
		}
		s.show()
		return false, nil
	case line == "p":
		if err := s.svc.Images.Retreat(); err != nil {
			if errors.Is(err, imagelist.ErrOutOfRange) {
				fmt.Fprintln(s.out, "Already at the first image.")
				return false, nil
			}
			return false, err
		}
		s.show()
		return false, nil
	case strings.HasPrefix(line, "c "):
		if err := t.SetCurrentCategory(line[2:]); err != nil {
			return false, err
		}
		s.show()
		return false, nil
	}

	if cur == nil {
		return false, tagging.ErrNoCurrentImage
	}

	switch {
	case line == "x":
		t.ClearTags(cur)
	case strings.HasPrefix(line, "+"):
		if err := s.svc.AddTagsToImage(cur.Filename, []string{line[1:]}); err != nil {
			return false, err
		}
	case strings.HasPrefix(line, "-"):
		if err := s.svc.RemoveTagsFromImage(cur.Filename, []string{strings.TrimSpace(line[1:])}); err != nil {
			return false, err
		}
	case strings.HasPrefix(line, "="):
		num, name, _ := strings.Cut(line[1:], " ")
		entry, err := strconv.Atoi(num)
		if err != nil {
			return false, fmt.Errorf("bad entry number %q", num)
		}
		if _, err := t.ChangeTag(entry, name); err != nil {
			return false, err
		}
	default:
		entry, err := strconv.Atoi(line)
		if err != nil {
			return false, fmt.Errorf("unknown command %q (? for help)", line)
		}
		entries := t.Categories.Tags(t.CurrentCategory)
		if entry < 0 || entry >= len(entries) {
			return false, fmt.Errorf("no entry %d in %s", entry, t.CurrentCategory)
		}
		if err := t.ToggleTag(entries[entry], cur); err != nil {
			return false, err
		}
	}
	s.show()
	return false, nil
}

func (s *Session) save() error {
	if !s.svc.Tagger.Changed {
		return nil
	}
	out, err := s.svc.Save()
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Saved %s\n", out)
	return nil
}

// show prints the current image and the entries of the current category.
func (s *Session) show() {
	cur := s.svc.Images.Current()
	if cur == nil {
		return
	}
	t := s.svc.Tagger
	fmt.Fprintf(s.out, "\n%s\n", cur)
	if others := t.TagNames(cur); len(others) > 0 {
		fmt.Fprintf(s.out, "Tags: %s\n", strings.Join(others, ", "))
	}
	fmt.Fprintf(s.out, "Category %s:\n", t.CurrentCategory)
	for i, tagno := range t.Categories.Tags(t.CurrentCategory) {
		mark := " "
		if cur.HasTag(tagno) {
			mark = "x"
		}
		fmt.Fprintf(s.out, "  %2d [%s] %s\n", i, mark, t.TagName(tagno))
	}
}

// Complete suggests completions for +tag and -tag, fuzzily matched
// against the known tags.
func (s *Session) Complete(line string) []string {
	if len(line) < 1 || (line[0] != '+' && line[0] != '-') {
		return nil
	}
	var out []string
	for _, name := range s.svc.Tagger.MatchTags(line[1:]) {
		out = append(out, line[:1]+name)
	}
	return out
}

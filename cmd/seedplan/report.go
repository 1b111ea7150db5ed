package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/mcules/seedplan/internal/activity"
	"github.com/mcules/seedplan/internal/planner"
)

type report struct {
	Before     int64 `yaml:"before"`
	Deleted    int64 `yaml:"to_be_deleted"`
	Downloaded int64 `yaml:"to_be_downloaded"`
	After      int64 `yaml:"after"`
	Capacity   int64 `yaml:"capacity"`
	Free       int64 `yaml:"free"`

	Evict    []evictEntry  `yaml:"evict"`
	Admit    []admitEntry  `yaml:"admit"`
	Rejected []rejectEntry `yaml:"rejected,omitempty"`
}

type evictEntry struct {
	Hash     string   `yaml:"hash"`
	Name     string   `yaml:"name"`
	Site     string   `yaml:"site"`
	Size     int64    `yaml:"size"`
	Siblings []string `yaml:"siblings,omitempty"`
}

type admitEntry struct {
	Site   string `yaml:"site"`
	SeedID int64  `yaml:"seed_id"`
	Title  string `yaml:"title"`
	Size   int64  `yaml:"size"`
}

// rejectEntry is a remote torrent that was asked for but found no room.
type rejectEntry struct {
	Torrent string `yaml:"torrent"`
	Title   string `yaml:"title"`
	Size    int64  `yaml:"size"`
	Note    string `yaml:"note,omitempty"`
}

// newReport lists the plan of res. Rejections are taken from events, the
// activity of the same run.
func newReport(res planner.Result, events []activity.Event) report {
	r := report{
		Before:     res.Change.Before,
		Deleted:    res.Change.ToBeDeleted,
		Downloaded: res.Change.ToBeDownloaded,
		After:      res.Change.After,
		Capacity:   res.Capacity,
		Free:       res.FreeSpace,
	}
	for _, t := range res.Plan.Evict {
		e := evictEntry{Hash: t.Hash, Name: t.Name, Site: t.Site, Size: t.Size}
		for _, sib := range res.Plan.Groups.Siblings(t.Hash) {
			e.Siblings = append(e.Siblings, fmt.Sprintf("%s (%s)", sib.Name, sib.Site))
		}
		r.Evict = append(r.Evict, e)
	}
	for _, t := range res.Plan.Admit {
		r.Admit = append(r.Admit, admitEntry{Site: t.Site, SeedID: t.SeedID, Title: t.Title, Size: t.Size})
	}
	for _, e := range events {
		if e.Type == activity.EventRejected {
			r.Rejected = append(r.Rejected, rejectEntry{Torrent: e.Torrent, Title: e.Name, Size: e.Bytes, Note: e.Note})
		}
	}
	return r
}

func (r report) writeYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}

func (r report) writeText(w io.Writer) error {
	p := &printer{w: w}
	p.printf("Delete %d torrents, %s\n", len(r.Evict), humanBytes(r.Deleted))
	for _, e := range r.Evict {
		p.printf("  - %s [%s] %s\n", e.Name, e.Site, humanBytes(e.Size))
		for _, s := range e.Siblings {
			p.printf("      shares files with %s\n", s)
		}
	}
	p.printf("Download %d torrents, %s\n", len(r.Admit), humanBytes(r.Downloaded))
	for _, a := range r.Admit {
		p.printf("  - %s-%d %s %s\n", a.Site, a.SeedID, a.Title, humanBytes(a.Size))
	}
	for _, e := range r.Rejected {
		p.printf("Cannot download %s %s %s: not enough removable space\n", e.Torrent, e.Title, humanBytes(e.Size))
	}
	p.printf("Space %s -> %s of %s\n", humanBytes(r.Before), humanBytes(r.After), humanBytes(r.Capacity))
	return p.err
}

// printer keeps the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func humanBytes(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}

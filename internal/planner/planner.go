// Package planner decides which held torrents to delete and which remote
// torrents to download so a download directory stays within its budget.
package planner

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/mcules/seedplan/internal/activity"
	"github.com/mcules/seedplan/internal/content"
	"github.com/mcules/seedplan/internal/metrics"
	"github.com/mcules/seedplan/internal/space"
	"github.com/mcules/seedplan/internal/torrent"
)

type Config struct {
	DownloadDir  string
	MaxTotalSize int64
	// MaxDownloadSize caps the bytes admitted per run. Unlimited lifts the
	// cap; 0 admits nothing.
	MaxDownloadSize int64
	PrimarySite     string
}

// Planner gathers what Compute needs from its collaborators and reports
// the outcome. It never deletes or downloads anything itself.
type Planner struct {
	Config   Config
	Resolver content.Resolver
	Oracle   space.Oracle

	Activity *activity.Log
	Metrics  *metrics.Planning
}

type Result struct {
	Plan      Plan
	Change    SpaceChange
	FreeSpace int64
	Capacity  int64
}

// Usage is a space reading of the download directory.
type Usage struct {
	Used     int64
	Free     int64
	Limit    int64
	Capacity int64
}

// Run plans one pass. local must be ranked with torrent.RankLocal and
// remote with torrent.RankRemote.
func (p *Planner) Run(ctx context.Context, local []torrent.ScoredLocal, remote []torrent.ScoredRemote, simulate bool) (Result, error) {
	res, err := p.run(ctx, local, remote, p.Config.MaxDownloadSize, simulate)
	if err != nil {
		p.Metrics.RunFailed()
		return Result{}, err
	}
	return res, nil
}

// RunOne plans the download of target alone. It outranks every held
// torrent that is not protected and ignores the per-run download cap.
func (p *Planner) RunOne(ctx context.Context, local []torrent.ScoredLocal, target torrent.Remote, simulate bool) (Result, error) {
	remote := []torrent.ScoredRemote{{Torrent: target, Score: math.Inf(1)}}
	res, err := p.run(ctx, local, remote, Unlimited, simulate)
	if err != nil {
		p.Metrics.RunFailed()
		return Result{}, err
	}
	if len(res.Plan.Admit) == 0 {
		log.Warn().Str("torrent", target.Ref()).Int64("bytes", target.Size).
			Msg("not enough removable space for the requested torrent")
		p.Activity.Add(activity.Event{
			Type:    activity.EventRejected,
			Site:    target.Site,
			Torrent: target.Ref(),
			Name:    target.Title,
			Bytes:   target.Size,
			Note:    "forced",
		})
	}
	return res, nil
}

// Usage reads the deduplicated size of local and the free space of the
// download directory.
func (p *Planner) Usage(ctx context.Context, local []torrent.Local) (Usage, error) {
	total, _, err := content.Group(ctx, local, p.resolver())
	if err != nil {
		return Usage{}, err
	}
	free, err := p.Oracle.FreeSpace(ctx, p.Config.DownloadDir)
	if err != nil {
		return Usage{}, fmt.Errorf("read free space: %w", err)
	}
	u := Usage{
		Used:     total,
		Free:     free,
		Limit:    p.Config.MaxTotalSize,
		Capacity: Capacity(total, free, p.Config.MaxTotalSize),
	}
	p.Metrics.Usage(u.Used, u.Free, u.Capacity)
	return u, nil
}

func (p *Planner) run(ctx context.Context, local []torrent.ScoredLocal, remote []torrent.ScoredRemote, maxDownload int64, simulate bool) (Result, error) {
	held := make([]torrent.Local, len(local))
	for i, l := range local {
		held[i] = l.Torrent
	}
	total, groups, err := content.Group(ctx, held, p.resolver())
	if err != nil {
		return Result{}, err
	}
	free, err := p.Oracle.FreeSpace(ctx, p.Config.DownloadDir)
	if err != nil {
		return Result{}, fmt.Errorf("read free space: %w", err)
	}

	plan, err := Compute(Input{
		Local:           local,
		Remote:          remote,
		Groups:          groups,
		TotalSize:       total,
		FreeSpace:       free,
		MaxTotalSize:    p.Config.MaxTotalSize,
		MaxDownloadSize: maxDownload,
		PrimarySite:     p.Config.PrimarySite,
		Simulate:        simulate,
	})
	if err != nil {
		return Result{}, fmt.Errorf("plan: %w", err)
	}
	change := Estimate(total, plan, simulate)

	evicted, admitted := p.record(plan, simulate)
	p.Metrics.ObserveRun(evicted, admitted, total, free, plan.Capacity, change.After)
	log.Info().
		Int("evict", len(plan.Evict)).
		Int("admit", len(plan.Admit)).
		Int64("before", change.Before).
		Int64("after", change.After).
		Int64("capacity", plan.Capacity).
		Bool("simulate", simulate).
		Msg("plan computed")

	return Result{Plan: plan, Change: change, FreeSpace: free, Capacity: plan.Capacity}, nil
}

// record adds an activity event per decision and returns the sizes that
// count toward metrics.
func (p *Planner) record(plan Plan, simulate bool) (evicted, admitted []int64) {
	var note string
	if simulate {
		note = "simulate"
	}

	evicted = make([]int64, 0, len(plan.Evict))
	for _, t := range plan.Evict {
		evicted = append(evicted, t.Size)
		p.Activity.Add(activity.Event{
			Type:    activity.EventEvict,
			Site:    t.Site,
			Torrent: t.Hash,
			Name:    t.Name,
			Bytes:   t.Size,
			Note:    note,
		})
		log.Debug().Str("hash", t.Hash).Str("site", t.Site).Int64("bytes", t.Size).Msg("evict")
	}

	admitted = make([]int64, 0, len(plan.Admit))
	for _, t := range plan.Admit {
		if !simulate {
			admitted = append(admitted, t.Size)
		}
		p.Activity.Add(activity.Event{
			Type:    activity.EventAdmit,
			Site:    t.Site,
			Torrent: t.Ref(),
			Name:    t.Title,
			Bytes:   t.Size,
			Note:    note,
		})
		log.Debug().Str("torrent", t.Ref()).Int64("bytes", t.Size).Msg("admit")
	}
	return evicted, admitted
}

func (p *Planner) resolver() content.Resolver {
	if p.Resolver == nil {
		return content.FileResolver{}
	}
	return p.Resolver
}

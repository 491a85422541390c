// Package daemon is an in-memory torrent daemon. It answers torrent-set
// and torrent-get the way a real daemon does, which lets the client stack
// be exercised end to end without one.
package daemon

import (
	"context"
	"encoding/json"
	"maps"
	"slices"
	"sync"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"

	"torrent-rpc/request"
	"torrent-rpc/server"
)

// TorrentGetMethod reads torrents back.
const TorrentGetMethod = "torrent-get"

// Torrent is the settable state of one torrent.
type Torrent struct {
	ID                  uint64  `json:"id"`
	Name                string  `json:"name"`
	BandwidthPriority   int     `json:"bandwidthPriority"`
	DownloadDir         string  `json:"downloadDir"`
	DownloadLimit       uint32  `json:"downloadLimit"`
	DownloadLimited     bool    `json:"downloadLimited"`
	HonorsSessionLimits bool    `json:"honorsSessionLimits"`
	PeerLimit           uint32  `json:"peer-limit"`
	QueuePosition       uint32  `json:"queuePosition"`
	SeedIdleLimit       uint32  `json:"seedIdleLimit"`
	SeedRatioLimit      float64 `json:"seedRatioLimit"`
	UploadLimit         uint32  `json:"uploadLimit"`
	UploadLimited       bool    `json:"uploadLimited"`
}

// Session holds the daemon's torrents.
type Session struct {
	mu       sync.RWMutex
	torrents map[uint64]*Torrent
	nextID   uint64
}

func NewSession() *Session {
	return &Session{torrents: make(map[uint64]*Torrent)}
}

// Add creates a torrent with the daemon's defaults and returns it.
func (s *Session) Add(name, dir string) Torrent {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t := &Torrent{
		ID:                  s.nextID,
		Name:                name,
		DownloadDir:         dir,
		HonorsSessionLimits: true,
		PeerLimit:           50,
		QueuePosition:       uint32(len(s.torrents)),
		SeedIdleLimit:       30,
		SeedRatioLimit:      2,
	}
	s.torrents[t.ID] = t
	return *t
}

// Torrent returns a copy of the torrent with id.
func (s *Session) Torrent(id uint64) (Torrent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.torrents[id]
	if !ok {
		return Torrent{}, false
	}
	return *t, true
}

// Register installs the session's methods on srv.
func (s *Session) Register(srv *server.Server) error {
	if err := srv.Handle(request.TorrentSetMethod, s.TorrentSet); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(srv.Handle(TorrentGetMethod, s.TorrentGet))
}

// TorrentSet applies every property in args to the targeted torrents.
// Either all of them are applied or, on a malformed argument, none.
func (s *Session) TorrentSet(_ context.Context, raw json.RawMessage) (any, error) {
	args, err := parseTorrentSet(raw)
	if err != nil {
		return nil, errors.Trace(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	targets := s.targets(args.ids)
	for _, t := range targets {
		args.apply(t)
	}
	logrus.WithFields(logrus.Fields{
		"torrents":   len(targets),
		"properties": len(args.changes),
	}).Debug("torrent-set applied")
	return nil, nil
}

type torrentGetArgs struct {
	IDs *[]uint64 `json:"ids"`
}

type torrentGetReply struct {
	Torrents []Torrent `json:"torrents"`
}

// TorrentGet returns the targeted torrents ordered by id.
func (s *Session) TorrentGet(_ context.Context, raw json.RawMessage) (any, error) {
	var args torrentGetArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, errors.NewNotValid(err, "torrent-get arguments")
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	reply := torrentGetReply{Torrents: []Torrent{}}
	for _, t := range s.targets(args.IDs) {
		reply.Torrents = append(reply.Torrents, *t)
	}
	return reply, nil
}

// targets resolves ids: nil means every torrent, an empty list none.
// Unknown ids are skipped. Called with mu held.
func (s *Session) targets(ids *[]uint64) []*Torrent {
	var found []*Torrent
	if ids == nil {
		for _, id := range slices.Sorted(maps.Keys(s.torrents)) {
			found = append(found, s.torrents[id])
		}
		return found
	}
	seen := make(map[uint64]bool, len(*ids))
	for _, id := range *ids {
		if t, ok := s.torrents[id]; ok && !seen[id] {
			seen[id] = true
			found = append(found, t)
		}
	}
	return found
}

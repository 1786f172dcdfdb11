package settings

import (
	"github.com/butter-bot-machines/slskconf/pkg/errors"
	"github.com/butter-bot-machines/slskconf/pkg/sharedb"
)

// StoreObjects replaces the content of share tables of one visibility.
// Every storable is saved on its own; a failure is logged and does not stop
// the others. The returned error aggregates the failures.
func (s *Store) StoreObjects(vis sharedb.Visibility, objects ...sharedb.Storable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.shares[vis]
	if set == nil {
		return errors.StorageError.New("%s shares are unavailable", vis)
	}
	agg := errors.NewAggregate()
	for _, r := range set.StoreObjects(objects...) {
		if r.Err != nil {
			s.logger.Warn("can't save share table", "file", r.File, "error", r.Err)
			agg.Add(r.Err)
		}
	}
	return agg.ErrorOrNil()
}

// SetShares stores a rescan of the public shares
func (s *Store) SetShares(snap sharedb.Snapshot) error {
	return s.setShares(sharedb.Public, snap)
}

// SetBuddyShares stores a rescan of the buddy shares
func (s *Store) SetBuddyShares(snap sharedb.Snapshot) error {
	return s.setShares(sharedb.Buddy, snap)
}

func (s *Store) setShares(vis sharedb.Visibility, snap sharedb.Snapshot) error {
	objects, err := snap.Storables()
	if err != nil {
		s.logger.Warn("can't encode shares", "visibility", vis.String(), "error", err)
		return errors.StorageError.Wrap(err, "can't encode %s shares", vis)
	}
	return s.StoreObjects(vis, objects...)
}

// ClearShares deletes all ten share tables and creates them empty
func (s *Store) ClearShares() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearShares()
}

func (s *Store) clearShares() error {
	public, buddy, err := sharedb.ClearShares(s.dataDir, s.shares[sharedb.Public], s.shares[sharedb.Buddy])
	delete(s.shares, sharedb.Public)
	delete(s.shares, sharedb.Buddy)
	if err != nil {
		s.logger.Warn("error while writing database files", "error", err)
		return err
	}
	s.shares[sharedb.Public] = public
	s.shares[sharedb.Buddy] = buddy
	return nil
}

// WithShares runs fn with the tables of one visibility under the store lock
func (s *Store) WithShares(vis sharedb.Visibility, fn func(*sharedb.TableSet) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.shares[vis]
	if set == nil {
		return errors.StorageError.New("%s shares are unavailable", vis)
	}
	return fn(set)
}

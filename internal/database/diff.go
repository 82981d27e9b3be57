package database

import (
	"bytes"
	"context"
	"fmt"

	"github.com/vfs19/edlscan/internal/model"
)

// SessionDiff describes how memory contents changed between two
// scan sessions over the same address range.
type SessionDiff struct {
	BaseID    int64
	TargetID  int64
	Appeared  []model.Discovery // non-zero in target, zero or unread in base
	Vanished  []model.Discovery // non-zero in base, zero or unread in target
	Changed   []ChangedWord     // non-zero in both with different values
	Unchanged int               // non-zero in both with identical values
}

// ChangedWord is a word whose value differs between two sessions.
type ChangedWord struct {
	Address uint32
	Base    []byte
	Target  []byte
}

// String formats a changed word as "0xADDR: old -> new".
func (c ChangedWord) String() string {
	return fmt.Sprintf("0x%08x: %x -> %x", c.Address, c.Base, c.Target)
}

// DiffSessions compares the discoveries of two sessions. Fuse regions
// are one-time programmable, so words appearing or changing between
// sessions usually indicate a provisioning event on the device side.
func (sdb *ScanDB) DiffSessions(ctx context.Context, baseID, targetID int64) (*SessionDiff, error) {
	if _, err := sdb.GetSession(ctx, baseID); err != nil {
		return nil, fmt.Errorf("base session %d: %w", baseID, err)
	}
	if _, err := sdb.GetSession(ctx, targetID); err != nil {
		return nil, fmt.Errorf("target session %d: %w", targetID, err)
	}

	base, err := sdb.GetDiscoveries(ctx, baseID)
	if err != nil {
		return nil, err
	}
	target, err := sdb.GetDiscoveries(ctx, targetID)
	if err != nil {
		return nil, err
	}

	baseByAddr := make(map[uint32][]byte, len(base))
	for _, d := range base {
		baseByAddr[d.Address] = d.Value
	}

	diff := &SessionDiff{BaseID: baseID, TargetID: targetID}
	seen := make(map[uint32]bool, len(target))
	for _, d := range target {
		seen[d.Address] = true
		baseValue, ok := baseByAddr[d.Address]
		switch {
		case !ok:
			diff.Appeared = append(diff.Appeared, d)
		case !bytes.Equal(baseValue, d.Value):
			diff.Changed = append(diff.Changed, ChangedWord{
				Address: d.Address,
				Base:    baseValue,
				Target:  d.Value,
			})
		default:
			diff.Unchanged++
		}
	}
	for _, d := range base {
		if !seen[d.Address] {
			diff.Vanished = append(diff.Vanished, d)
		}
	}
	return diff, nil
}

package domain

import (
	"sync"
)

// APListKind tags what a list is used for.
type APListKind int

const (
	ListDeviceScan APListKind = iota
	ListAllowed
	ListInvalid
)

// APList is a set of access points with lookup indices by ESSID and BSSID.
// Device-scan lists are guarded by the owning device; the process-wide
// Allowed and Invalid lists are guarded by their own embedded mutex.
type APList struct {
	mu   sync.Mutex
	kind APListKind
	aps  []*AccessPoint
}

// NewAPList creates an empty list of the given kind.
func NewAPList(kind APListKind) *APList {
	return &APList{kind: kind}
}

// Kind returns the list's role.
func (l *APList) Kind() APListKind { return l.kind }

// Len returns the number of records in the list.
func (l *APList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.aps)
}

// Append adds ap to the list, collapsing duplicates: matching BSSIDs merge
// preferring the newer timestamp; when neither record has a BSSID, matching
// ESSIDs merge in place.
func (l *APList) Append(ap *AccessPoint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appendLocked(ap)
}

func (l *APList) appendLocked(ap *AccessPoint) {
	for _, have := range l.aps {
		if have.Matches(ap) {
			have.absorb(ap)
			return
		}
	}
	l.aps = append(l.aps, ap)
}

// Remove drops the record naming the same network as ap, if present.
func (l *APList) Remove(ap *AccessPoint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, have := range l.aps {
		if have.Matches(ap) {
			l.aps = append(l.aps[:i], l.aps[i+1:]...)
			return
		}
	}
}

// RemoveByESSID drops the record with the given ESSID, if present.
func (l *APList) RemoveByESSID(essid string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, have := range l.aps {
		if have.ESSID == essid {
			l.aps = append(l.aps[:i], l.aps[i+1:]...)
			return
		}
	}
}

// Clear empties the list. The Invalid list grows monotonically within one
// activation cycle; only explicit policy action calls Clear on it.
func (l *APList) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.aps = nil
}

// ByESSID returns the record with the given ESSID, or nil.
func (l *APList) ByESSID(essid string) *AccessPoint {
	if essid == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ap := range l.aps {
		if ap.ESSID == essid {
			return ap
		}
	}
	return nil
}

// ByBSSID returns the record with the given base-station address, or nil.
func (l *APList) ByBSSID(bssid string) *AccessPoint {
	if bssid == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ap := range l.aps {
		if ap.HasBSSID() && ap.BSSID.String() == bssid {
			return ap
		}
	}
	return nil
}

// Contains reports whether the list has a record naming the same network.
func (l *APList) Contains(ap *AccessPoint) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, have := range l.aps {
		if have.Matches(ap) {
			return true
		}
	}
	return false
}

// ContainsESSID reports whether any record carries the given ESSID.
func (l *APList) ContainsESSID(essid string) bool {
	return l.ByESSID(essid) != nil
}

// Snapshot returns a stable copy of the current membership. Mutations after
// the call are not observed by the returned slice.
func (l *APList) Snapshot() []*AccessPoint {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*AccessPoint, len(l.aps))
	copy(out, l.aps)
	return out
}

// Combine returns the union of a and b as a fresh list; on collision the
// record with the newest timestamp wins the volatile fields.
func Combine(kind APListKind, a, b *APList) *APList {
	out := NewAPList(kind)
	if a != nil {
		for _, ap := range a.Snapshot() {
			out.appendLocked(ap.Clone())
		}
	}
	if b != nil {
		for _, ap := range b.Snapshot() {
			out.appendLocked(ap.Clone())
		}
	}
	return out
}

// Diff compares two lists and returns the records only in a (removed) and
// only in b (added), matching by BSSID when both sides have one, else ESSID.
func Diff(a, b *APList) (added, removed []*AccessPoint) {
	asnap := a.Snapshot()
	bsnap := b.Snapshot()
	for _, ap := range bsnap {
		if !a.Contains(ap) {
			added = append(added, ap)
		}
	}
	for _, ap := range asnap {
		if !b.Contains(ap) {
			removed = append(removed, ap)
		}
	}
	return added, removed
}

// CopyProperties copies key material, timestamps and the trusted flag from
// src records into l records with matching ESSIDs.
func (l *APList) CopyProperties(src *APList) {
	srcSnap := src.Snapshot()
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, dst := range l.aps {
		if dst.ESSID == "" {
			continue
		}
		for _, from := range srcSnap {
			if from.ESSID != dst.ESSID {
				continue
			}
			if from.Key != "" {
				dst.Key = from.Key
				dst.KeyType = from.KeyType
			}
			if from.Auth != AuthUnknown {
				dst.Auth = from.Auth
			}
			if from.LastSeen.After(dst.LastSeen) {
				dst.LastSeen = from.LastSeen
			}
			dst.Trusted = dst.Trusted || from.Trusted
		}
	}
}

// CopyESSIDsByAddress fills in blank ESSIDs in l from src records with the
// same BSSID, recovering names for cloaking base stations.
func (l *APList) CopyESSIDsByAddress(src *APList) {
	srcSnap := src.Snapshot()
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, dst := range l.aps {
		if dst.ESSID != "" || !dst.HasBSSID() {
			continue
		}
		for _, from := range srcSnap {
			if from.ESSID != "" && from.HasBSSID() && from.BSSID.String() == dst.BSSID.String() {
				dst.ESSID = from.ESSID
				break
			}
		}
	}
}

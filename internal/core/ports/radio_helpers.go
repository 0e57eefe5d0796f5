package ports

import "time"

// AssociationPause is the bounded wait between pushing radio parameters and
// checking for link: 10s on cards with more than 14 channels (A/B/G), 5s on
// plain 802.11b cards.
func AssociationPause(numFrequencies int) time.Duration {
	if numFrequencies > 14 {
		return 10 * time.Second
	}
	return 5 * time.Second
}

// EnsureUp raises the interface only when it is not already up.
func EnsureUp(r Radio) error {
	up, err := r.IsUp()
	if err != nil {
		return err
	}
	if up {
		return nil
	}
	return r.BringUp()
}

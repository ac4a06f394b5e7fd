package relay

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Directory maps user identities to their live connection ids.
type Directory struct {
	mu     sync.RWMutex
	byUser map[string]map[string]struct{}
	owners map[string]string
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		byUser: make(map[string]map[string]struct{}),
		owners: make(map[string]string),
	}
}

// Register adds connID to userID's set. A connection owned by another user is moved.
func (d *Directory) Register(userID, connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if prev, ok := d.owners[connID]; ok {
		if prev == userID {
			return
		}
		d.removeLocked(prev, connID)
	}
	conns, ok := d.byUser[userID]
	if !ok {
		conns = make(map[string]struct{})
		d.byUser[userID] = conns
	}
	conns[connID] = struct{}{}
	d.owners[connID] = userID
}

// Unregister removes connID from its owner's set and reports the owner.
func (d *Directory) Unregister(connID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	userID, ok := d.owners[connID]
	if !ok {
		return "", false
	}
	d.removeLocked(userID, connID)
	return userID, true
}

func (d *Directory) removeLocked(userID, connID string) {
	delete(d.owners, connID)
	if conns, ok := d.byUser[userID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(d.byUser, userID)
		}
	}
}

// ActiveConnections returns a sorted copy of userID's connection ids.
func (d *Directory) ActiveConnections(userID string) []string {
	d.mu.RLock()
	ids := lo.Keys(d.byUser[userID])
	d.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Owner returns the user a connection is registered for.
func (d *Directory) Owner(connID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	userID, ok := d.owners[connID]
	return userID, ok
}

// Len returns the number of users with at least one live connection.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byUser)
}

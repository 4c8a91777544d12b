/*
Package census is the read-only boundary to the census module.

The census application owns person records; the payment ledger only
references them by id and never writes back. Deleting a census person
does not cascade into the ledger. The ledger consumes this interface;
the real implementation lives in the census application's process.
*/
package census

import (
	"context"
	"errors"
	"sync"
)

// ErrPersonNotFound is returned when no person matches the id.
var ErrPersonNotFound = errors.New("person not found")

// Person is the slice of a census record the ledger needs.
type Person struct {
	ID     string
	Folio  string
	Name   string
	Active bool
}

// Directory looks up census persons. Read-only by contract.
type Directory interface {
	GetPerson(ctx context.Context, id string) (Person, error)
}

// =============================================================================
// IN-MEMORY DIRECTORY - for tests and operator tooling
// =============================================================================

type MemoryDirectory struct {
	mu     sync.RWMutex
	people map[string]Person
}

func NewMemoryDirectory(people ...Person) *MemoryDirectory {
	d := &MemoryDirectory{people: make(map[string]Person, len(people))}
	for _, p := range people {
		d.people[p.ID] = p
	}
	return d
}

func (d *MemoryDirectory) Add(p Person) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.people[p.ID] = p
}

func (d *MemoryDirectory) GetPerson(_ context.Context, id string) (Person, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.people[id]
	if !ok {
		return Person{}, ErrPersonNotFound
	}
	return p, nil
}

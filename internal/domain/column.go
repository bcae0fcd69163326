package domain

import "strings"

// Column is one catalog entry of a board. Catalogs are static per board; membership of an item is
// derived from its attributes, never stored.
type Column struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Rank int    `json:"rank"`
}

// NewColumn constructs a validated catalog entry.
func NewColumn(id, name string, rank int) (Column, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		return Column{}, ErrInvalidColumnID
	}
	if name == "" {
		return Column{}, ErrInvalidName
	}
	if rank < 0 {
		return Column{}, ErrInvalidRank
	}
	return Column{ID: id, Name: name, Rank: rank}, nil
}

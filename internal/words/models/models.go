package models

import (
	"wordhub/internal/taxonomy"
	"wordhub/pkg/domain"
)

// WordStatus holds the counters and owner of one pattern.
//
// Invariants: Total >= Today, Average >= 0, every counter >= 0.
type WordStatus struct {
	Average float64        `json:"average"`
	Today   int            `json:"today"`
	Total   int            `json:"total"`
	Temp    int            `json:"temp"`
	Owner   domain.ActorID `json:"who"`
}

// DefaultStatus is the template applied by add, reset and replace.
func DefaultStatus(owner domain.ActorID) WordStatus {
	return WordStatus{Owner: owner}
}

// Counters is the owner-free view returned by count.
type Counters struct {
	Average float64 `json:"average"`
	Today   int     `json:"today"`
	Total   int     `json:"total"`
	Temp    int     `json:"temp"`
}

// Counters drops the owner.
func (s WordStatus) Counters() Counters {
	return Counters{Average: s.Average, Today: s.Today, Total: s.Total, Temp: s.Temp}
}

// WordEntry is a pattern and its status.
type WordEntry struct {
	Word   string     `json:"word"`
	Status WordStatus `json:"status"`
}

// TypedEntry is a WordEntry qualified with its type, used by cross-type search.
type TypedEntry struct {
	Type taxonomy.WordType `json:"type"`
	WordEntry
}

// TableName is the persistence name of a type's entry set.
func TableName(t taxonomy.WordType) string {
	return string(t) + "_words"
}

// CommentsTable is the persistence name of the comments table.
const CommentsTable = "comments"

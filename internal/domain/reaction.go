package domain

import "time"

// PendingReactionMark remembers an optimistic like durably, so a reload
// renders the liked state before any network call returns and a later
// unlike can address the reaction without an extra lookup. At most one
// mark exists per (viewer, review); writes overwrite.
type PendingReactionMark struct {
	ReactionID string    `json:"reaction_id"`
	MarkedAt   time.Time `json:"marked_at"`
}

// LikeView is the visible like state of one review for one viewer.
type LikeView struct {
	ReviewID string `json:"review_id"`
	Count    int    `json:"count"`
	Liked    bool   `json:"liked"`
}

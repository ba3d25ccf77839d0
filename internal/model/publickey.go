package model

import "time"

// PublicKey is an uploaded OpenSSH public key usable by a Job's ssh
// containers. Immutable after creation.
type PublicKey struct {
	ID        string    `json:"id"`
	Name      string    `json:"name" validate:"required"`
	PublicKey string    `json:"public_key" validate:"required"`
	Created   time.Time `json:"created"`
}

// DeletedPublicKey is the soft-deleted mirror record, stamped with the
// deletion time when it's moved out of the live store.
type DeletedPublicKey struct {
	PublicKey
	Deleted time.Time `json:"deleted"`
}

// PublicKeyInput is the POST /public-keys request body.
type PublicKeyInput struct {
	Name      string `json:"name" validate:"required"`
	PublicKey string `json:"public_key" validate:"required"`
}

func NewPublicKey(id string, in PublicKeyInput, created time.Time) PublicKey {
	return PublicKey{
		ID:        id,
		Name:      in.Name,
		PublicKey: in.PublicKey,
		Created:   created,
	}
}

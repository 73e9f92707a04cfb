package identity

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Sentinel errors for identity resolution.
var (
	// ErrEmptyKey indicates an Identify or Alias call with a key that has
	// no entries.
	ErrEmptyKey = errors.New("identity: empty canonical key")

	// ErrBadKey indicates a key whose paths or values cannot be
	// canonicalized.
	ErrBadKey = errors.New("identity: malformed canonical key")

	// ErrConflict indicates an Alias call whose key is already bound to a
	// different identity. This is a programming error in the calling
	// collector: two independently assigned identities cannot be merged.
	ErrConflict = errors.New("identity: alias would merge two identities")

	// ErrNilIdentity indicates an Alias call against a nil identity.
	ErrNilIdentity = errors.New("identity: nil identity")
)

// Identity is the stable opaque token for one entity. Identities are created
// only by a Store; collectors treat them as values to attach and compare,
// never to construct.
type Identity struct {
	token string
	first string // canonical digest of the key that minted this identity
}

// Token returns the opaque token string. Tokens are unique for the lifetime
// of the owning Store.
func (id *Identity) Token() string { return id.token }

// String implements fmt.Stringer.
func (id *Identity) String() string { return id.token }

// Store resolves canonical keys to identities for one analysis session.
//
// Identify is memoized and atomic: the same key always yields the same
// identity, including under concurrent calls from racing collectors. An
// identity may be handed out before any component has been merged onto it;
// a handle record can reference its resource's identity while the resource
// itself is still being collected elsewhere.
type Store struct {
	mu    sync.Mutex
	byKey map[string]*Identity
}

// NewStore creates an empty per-session identity store.
func NewStore() *Store {
	return &Store{byKey: make(map[string]*Identity)}
}

// Identify resolves key to its identity, minting one on first sight.
func (s *Store) Identify(key Key) (*Identity, error) {
	digest, err := key.digest()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byKey[digest]; ok {
		return id, nil
	}
	id := &Identity{token: uuid.NewString(), first: digest}
	s.byKey[digest] = id
	return id, nil
}

// Alias binds an additional canonical key to an existing identity, so that
// later Identify calls with key return id. Re-binding a key to the identity
// it already resolves to is a no-op; binding it to a different identity
// returns ErrConflict.
func (s *Store) Alias(id *Identity, key Key) error {
	if id == nil {
		return ErrNilIdentity
	}
	digest, err := key.digest()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byKey[digest]; ok {
		if existing == id {
			return nil
		}
		return fmt.Errorf("%w: key %s is bound to %s, not %s",
			ErrConflict, key, existing.Token(), id.Token())
	}
	s.byKey[digest] = id
	return nil
}

// Len returns the number of canonical keys currently bound. Aliased
// identities count once per key.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byKey)
}

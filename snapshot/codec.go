package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cairn-forensics/cairn/component"
	"github.com/cairn-forensics/cairn/entity"
	"github.com/cairn-forensics/cairn/identity"
	"github.com/cairn-forensics/cairn/objmodel"
)

// Decoding errors.
var (
	ErrBadSnapshot      = errors.New("snapshot: malformed snapshot")
	ErrUnknownComponent = errors.New("snapshot: archived component is not registered")
)

// Snapshot is one serialized entity graph.
type Snapshot struct {
	Session  string         `json:"session"`
	TakenAt  time.Time      `json:"taken_at"`
	Entities []EntityRecord `json:"entities"`
}

// EntityRecord is one archived entity: its identity token and its
// components' field values.
type EntityRecord struct {
	Identity   string                    `json:"identity"`
	Components map[string]map[string]any `json:"components"`
}

// Take captures the store's current entity graph.
func Take(session string, store *entity.Store) *Snapshot {
	snap := &Snapshot{Session: session, TakenAt: time.Now().UTC()}
	for e := range store.All() {
		rec := EntityRecord{
			Identity:   e.Identity().Token(),
			Components: make(map[string]map[string]any),
		}
		for _, ct := range e.ComponentTypes() {
			inst, ok := e.Component(ct)
			if !ok {
				continue
			}
			fields := make(map[string]any)
			for _, name := range inst.FieldNames() {
				val, ok := inst.Get(name)
				if !ok {
					continue
				}
				fields[name] = encodeValue(val)
			}
			rec.Components[ct] = fields
		}
		snap.Entities = append(snap.Entities, rec)
	}
	return snap
}

// Encode renders the snapshot as JSON.
func (s *Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// Decode parses an encoded snapshot.
func Decode(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	return &snap, nil
}

// Restore merges the archived graph into the given stores. Identities are
// re-minted through ids, one per archived token, so references between
// restored entities stay intact. Archived components must exist in reg.
func Restore(snap *Snapshot, reg *component.Registry, ids *identity.Store, store *entity.Store) error {
	restored := func(token string) (*identity.Identity, error) {
		if token == "" {
			return nil, fmt.Errorf("%w: blank identity token", ErrBadSnapshot)
		}
		return ids.Identify(identity.Key{"archive/token": token})
	}

	for _, rec := range snap.Entities {
		id, err := restored(rec.Identity)
		if err != nil {
			return err
		}
		for ct, fields := range rec.Components {
			def, err := reg.Lookup(ct)
			if err != nil {
				return fmt.Errorf("%w: %q", ErrUnknownComponent, ct)
			}
			inst := component.New(def)
			for name, raw := range fields {
				val, err := decodeValue(raw, restored)
				if err != nil {
					return fmt.Errorf("snapshot: %s/%s: %w", ct, name, err)
				}
				inst.Set(name, val)
			}
			if err := inst.Err(); err != nil {
				return fmt.Errorf("snapshot: %s: %w", ct, err)
			}
			if err := store.Merge(id, inst); err != nil {
				return err
			}
		}
	}
	return nil
}

// encodeValue maps a field value to its wire form. Identities, times and
// structure references get a tagged object; everything else is plain JSON.
func encodeValue(val any) any {
	switch v := val.(type) {
	case *identity.Identity:
		return map[string]any{"$identity": v.Token()}
	case time.Time:
		return map[string]any{"$time": v.UTC().Format(time.RFC3339Nano)}
	case objmodel.Object:
		// Addresses are written as hex strings. A JSON number is a float64
		// on the way back in, which cannot hold a full 64-bit kernel
		// pointer.
		return map[string]any{"$object": map[string]any{
			"type":    v.TypeName(),
			"address": fmt.Sprintf("0x%x", v.Address()),
		}}
	default:
		return v
	}
}

func decodeValue(raw any, restored func(string) (*identity.Identity, error)) (any, error) {
	switch v := raw.(type) {
	case map[string]any:
		if token, ok := v["$identity"].(string); ok {
			return restored(token)
		}
		if stamp, ok := v["$time"].(string); ok {
			t, err := time.Parse(time.RFC3339Nano, stamp)
			if err != nil {
				return nil, fmt.Errorf("%w: bad timestamp %q", ErrBadSnapshot, stamp)
			}
			return t, nil
		}
		if obj, ok := v["$object"].(map[string]any); ok {
			typ, _ := obj["type"].(string)
			hex, _ := obj["address"].(string)
			if typ == "" || hex == "" {
				return nil, fmt.Errorf("%w: bad structure reference", ErrBadSnapshot)
			}
			addr, err := strconv.ParseUint(hex, 0, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad structure address %q", ErrBadSnapshot, hex)
			}
			return objmodel.Ref{Type: typ, Addr: addr}, nil
		}
		return nil, fmt.Errorf("%w: unrecognized tagged value", ErrBadSnapshot)
	case float64:
		return int64(v), nil
	default:
		return v, nil
	}
}

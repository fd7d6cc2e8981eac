package audit

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/wolfeidau/assettrack/internal/models"
)

// Snapshot is the JSON shaped view of an entity stored in an audit record.
type Snapshot map[string]any

// alwaysIncluded are present in both sides of every product update.
var alwaysIncluded = []string{"category", "name", "serialNumber", "brand", "model", "attributes"}

// ignoredFields change on every write and carry no history.
var ignoredFields = map[string]bool{
	"updatedAt": true,
}

// ProductSnapshot returns the full view of p used for creations and deletions.
func ProductSnapshot(p *models.Product) (Snapshot, error) {
	if p == nil {
		return nil, nil
	}
	snap, err := toSnapshot(p)
	if err != nil {
		return nil, err
	}
	decorate(snap, p)
	return snap, nil
}

// ProductSnapshots returns the views of every product in a batch.
func ProductSnapshots(products []*models.Product) ([]Snapshot, error) {
	out := make([]Snapshot, 0, len(products))
	for _, p := range products {
		snap, err := ProductSnapshot(p)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// ProductDiff returns the old and new views of an update. Both contain the
// identifying fields plus every other field whose value differs.
func ProductDiff(before, after *models.Product) (oldData, newData Snapshot, err error) {
	oldFull, err := ProductSnapshot(before)
	if err != nil {
		return nil, nil, err
	}
	newFull, err := ProductSnapshot(after)
	if err != nil {
		return nil, nil, err
	}
	oldData, newData = Diff(oldFull, newFull, alwaysIncluded...)
	return oldData, newData, nil
}

// Diff keeps the fields of before and after whose values differ, plus the
// keys in always.
func Diff(before, after Snapshot, always ...string) (Snapshot, Snapshot) {
	oldData := Snapshot{}
	newData := Snapshot{}

	for _, key := range always {
		oldData[key] = before[key]
		newData[key] = after[key]
	}

	keys := make(map[string]struct{}, len(before)+len(after))
	for k := range before {
		keys[k] = struct{}{}
	}
	for k := range after {
		keys[k] = struct{}{}
	}

	for k := range keys {
		if ignoredFields[k] {
			continue
		}
		if _, done := oldData[k]; done {
			continue
		}
		ov, oldOK := before[k]
		nv, newOK := after[k]
		if oldOK == newOK && reflect.DeepEqual(ov, nv) {
			continue
		}
		oldData[k] = ov
		newData[k] = nv
	}

	return oldData, newData
}

// MemberSnapshot returns the view of m without its embedded products, which
// are audited as assets of their own.
func MemberSnapshot(m *models.Member) (Snapshot, error) {
	if m == nil {
		return nil, nil
	}
	snap, err := toSnapshot(m)
	if err != nil {
		return nil, err
	}
	delete(snap, "products")
	return snap, nil
}

func toSnapshot(v any) (Snapshot, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snap, nil
}

func decorate(snap Snapshot, p *models.Product) {
	snap["brand"] = p.Brand()
	snap["model"] = p.Model()
	if _, ok := snap["serialNumber"]; !ok {
		snap["serialNumber"] = ""
	}

	attrs := make([]any, 0, len(p.Attributes))
	for _, a := range p.Attributes {
		attrs = append(attrs, map[string]any{"key": a.Key, "value": a.Value})
	}
	snap["attributes"] = attrs
}

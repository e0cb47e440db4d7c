package staging

import (
	"context"
	"fmt"

	"terrasync/internal/container"
	id "terrasync/pkg/domain"
	"terrasync/pkg/requestcontext"
)

// Loader turns a verified container payload into staging rows. It assigns
// fresh record IDs and keeps only the package-local original identifier:
// production identifiers are assigned at commit, never taken from a device.
//
// Idempotency against double upload is enforced upstream by the package
// store's checksum key, so the loader itself can stay a plain bulk insert.
type Loader struct {
	store Store
}

func NewLoader(store Store) *Loader {
	return &Loader{store: store}
}

// Load stages every record in the payload under pkgID and returns per-kind
// counts. On store failure nothing is kept: the caller discards the partial
// partition via DeleteByPackage.
func (l *Loader) Load(ctx context.Context, pkgID id.PackageID, payload *container.Payload) (map[id.EntityKind]int, error) {
	now := requestcontext.Now(ctx)
	records := make([]*Record, 0, payload.TotalRecords())

	for i := range payload.Buildings {
		b := payload.Buildings[i]
		records = append(records, NewRecord(pkgID, id.KindBuilding, b.OriginalID, &b, now))
	}
	for i := range payload.Units {
		u := payload.Units[i]
		records = append(records, NewRecord(pkgID, id.KindUnit, u.OriginalID, &u, now))
	}
	for i := range payload.Persons {
		p := payload.Persons[i]
		records = append(records, NewRecord(pkgID, id.KindPerson, p.OriginalID, &p, now))
	}
	for i := range payload.Households {
		h := payload.Households[i]
		records = append(records, NewRecord(pkgID, id.KindHousehold, h.OriginalID, &h, now))
	}
	for i := range payload.Relations {
		rel := payload.Relations[i]
		records = append(records, NewRecord(pkgID, id.KindRelation, rel.OriginalID, &rel, now))
	}
	for i := range payload.Evidence {
		ev := payload.Evidence[i]
		records = append(records, NewRecord(pkgID, id.KindEvidence, ev.OriginalID, &ev, now))
	}
	for i := range payload.Claims {
		c := payload.Claims[i]
		records = append(records, NewRecord(pkgID, id.KindClaim, c.OriginalID, &c, now))
	}
	for i := range payload.Surveys {
		sv := payload.Surveys[i]
		records = append(records, NewRecord(pkgID, id.KindSurvey, sv.OriginalID, &sv, now))
	}

	if err := l.store.BulkInsert(ctx, records); err != nil {
		return nil, fmt.Errorf("stage package %s: %w", pkgID, err)
	}

	counts := make(map[id.EntityKind]int)
	for _, r := range records {
		counts[r.Kind]++
	}
	return counts, nil
}

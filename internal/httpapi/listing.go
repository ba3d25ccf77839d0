package httpapi

import "github.com/Cray-HPE/ims-sub000/internal/store"

// listRecords returns every record in s, in stable iteration order,
// shared by every resource's GET-collection handler.
func listRecords[T any](s *store.Store[T]) []T {
	ids := s.Iter()
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if v, ok := s.Get(id); ok {
			out = append(out, v)
		}
	}
	return out
}

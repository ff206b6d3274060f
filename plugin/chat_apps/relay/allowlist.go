package relay

// AllowList is the static set of Telegram user IDs allowed to use the relay.
// It is built once and never mutated, so it is safe for concurrent reads.
type AllowList struct {
	ids map[int64]struct{}
}

// NewAllowList builds an allow-list from user IDs.
func NewAllowList(ids []int64) AllowList {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return AllowList{ids: set}
}

// Allows reports whether id is authorized.
func (a AllowList) Allows(id int64) bool {
	_, ok := a.ids[id]
	return ok
}

// Len returns the number of authorized users.
func (a AllowList) Len() int {
	return len(a.ids)
}

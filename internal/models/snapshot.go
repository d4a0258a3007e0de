package models

import "time"

// Snapshot is the full client-side mirror of backend state for one session.
// CurrentUser is nil when signed out.
type Snapshot struct {
	CurrentUser      *User                 `json:"currentUser"`
	AllUsers         []User                `json:"allUsers"`
	Marketplaces     []Marketplace         `json:"marketplaces"`
	MarketplaceUsers []MarketplaceUser     `json:"marketplaceUsers"`
	Jobs             []Job                 `json:"jobs"`
	Favorites        []FavoriteMarketplace `json:"favorites"`
	FetchedAt        time.Time             `json:"fetchedAt"`
}

// SignedIn reports whether the snapshot carries a session
func (s *Snapshot) SignedIn() bool {
	return s != nil && s.CurrentUser != nil
}

// Clone returns a deep copy of the snapshot
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{FetchedAt: s.FetchedAt}
	if s.CurrentUser != nil {
		u := *s.CurrentUser
		u.Avatar = cloneString(s.CurrentUser.Avatar)
		out.CurrentUser = &u
	}
	out.AllUsers = make([]User, len(s.AllUsers))
	for i, u := range s.AllUsers {
		u.Avatar = cloneString(u.Avatar)
		out.AllUsers[i] = u
	}
	out.Marketplaces = append([]Marketplace{}, s.Marketplaces...)
	out.MarketplaceUsers = make([]MarketplaceUser, len(s.MarketplaceUsers))
	for i, mu := range s.MarketplaceUsers {
		out.MarketplaceUsers[i] = mu.Clone()
	}
	out.Jobs = make([]Job, len(s.Jobs))
	for i, j := range s.Jobs {
		out.Jobs[i] = j.Clone()
	}
	out.Favorites = append([]FavoriteMarketplace{}, s.Favorites...)
	return out
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

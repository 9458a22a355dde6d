package models

// UserProfile is the per-user document holding the saved address book.
type UserProfile struct {
	UserID            string    `json:"userId" bson:"_id"`
	Addresses         []Address `json:"addresses" bson:"addresses"`
	LastUsedAddressID string    `json:"lastUsedAddressId,omitempty" bson:"last_used_address_id,omitempty"`
}

func (u UserProfile) Find(id string) (Address, bool) {
	for _, a := range u.Addresses {
		if a.ID == id {
			return a, true
		}
	}
	return Address{}, false
}

// Preselect picks the address a new checkout starts with: the last used one
// while it is still in the book, otherwise the first saved one.
func (u UserProfile) Preselect() (Address, bool) {
	if u.LastUsedAddressID != "" {
		if a, ok := u.Find(u.LastUsedAddressID); ok {
			return a, true
		}
	}
	if len(u.Addresses) > 0 {
		return u.Addresses[0], true
	}
	return Address{}, false
}

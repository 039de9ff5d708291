package types

type Identity struct {
	Domain      string
	User        string
	DisplayName string
	Mail        string
}

func (i Identity) IsZero() bool {
	return i.User == ""
}

// String renders the identity in DOMAIN\user form.
func (i Identity) String() string {
	if i.Domain == "" {
		return i.User
	}
	return i.Domain + `\` + i.User
}

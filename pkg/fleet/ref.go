package fleet

import (
	"bytes"
	"fmt"

	"github.com/bytedance/sonic"
)

// Ref points at a user. The backend sends it either as a bare id or as a
// populated user object; both decode into a Ref and ID() is the only way
// to compare them. A decoded Ref re-encodes in the shape it arrived in.
type Ref struct {
	id   string
	user *User
	raw  []byte
}

func RefID(id string) *Ref {
	return &Ref{id: id}
}

func RefUser(u User) *Ref {
	return &Ref{id: u.ID, user: &u}
}

// ID returns the referenced user id, or "" for a nil ref.
func (r *Ref) ID() string {
	if r == nil {
		return ""
	}
	return r.id
}

// User returns the populated user, if the backend sent one.
func (r *Ref) User() (User, bool) {
	if r == nil || r.user == nil {
		return User{}, false
	}
	return *r.user, true
}

func (r *Ref) String() string {
	if u, ok := r.User(); ok && u.Username != "" {
		return u.Username
	}
	return r.ID()
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*r = Ref{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		if err := sonic.Unmarshal(data, &r.id); err != nil {
			return err
		}
	case '{':
		var u User
		if err := sonic.Unmarshal(data, &u); err != nil {
			return err
		}
		r.id = u.ID
		r.user = &u
	case '[', 't', 'f':
		return fmt.Errorf("invalid user reference %s", data)
	default:
		// numeric ids are kept verbatim
		r.id = string(data)
	}

	r.raw = append([]byte(nil), data...)
	return nil
}

func (r Ref) MarshalJSON() ([]byte, error) {
	if r.raw != nil {
		return r.raw, nil
	}
	if r.user != nil {
		return sonic.Marshal(r.user)
	}
	return sonic.Marshal(r.id)
}

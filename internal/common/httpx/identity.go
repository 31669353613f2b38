package httpx

import (
	"errors"
	"net/http"
	"strconv"
)

// Identity is resolved upstream (API gateway); this service trusts the
// forwarded headers. Account management itself lives elsewhere.
const (
	UserHeader = "X-User-ID"
	RoleHeader = "X-User-Role"
)

var ErrNoUser = errors.New("missing or invalid " + UserHeader + " header")

func CurrentUser(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.Header.Get(UserHeader), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrNoUser
	}
	return id, nil
}

func IsStaff(r *http.Request) bool {
	role := r.Header.Get(RoleHeader)
	return role == "staff" || role == "manager"
}

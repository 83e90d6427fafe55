package auth

import "net/http"

// Scopes understood by the entries API.
const (
	ScopeEntriesWrite = "entries:write"
	ScopeEntriesRead  = "entries:read"
)

// ScopeForMethod maps safe methods to the read scope and everything else to
// the write scope.
func ScopeForMethod(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ScopeEntriesRead
	}
	return ScopeEntriesWrite
}

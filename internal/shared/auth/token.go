package auth

import (
	"net/http"
	"strings"
)

// ExtractBearerToken returns the token from the Authorization header, or "".
func ExtractBearerToken(r *http.Request) string {
	if r == nil {
		return ""
	}
	return ExtractBearerTokenFromHeader(r.Header.Get("Authorization"))
}

// ExtractBearerTokenFromHeader strips a case-insensitive "Bearer " prefix.
func ExtractBearerTokenFromHeader(header string) string {
	header = strings.TrimSpace(header)
	const bearerPrefix = "bearer "
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

// ExtractToken looks for a token in the path value first, then the query, then the bearer header.
func ExtractToken(r *http.Request, pathToken, queryParam string) string {
	if token := strings.TrimSpace(pathToken); token != "" {
		return token
	}
	if queryParam == "" {
		queryParam = "token"
	}
	if r != nil && r.URL != nil {
		if token := strings.TrimSpace(r.URL.Query().Get(queryParam)); token != "" {
			return token
		}
	}
	return ExtractBearerToken(r)
}

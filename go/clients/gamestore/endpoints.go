package gamestore

import (
	"fmt"
	"net/url"
)

const (
	SessionsEndpoint   = "/sessions"
	EnrichmentEndpoint = "/admin/enrichment"
)

func sessionPath(sessionID, resource string) string {
	return fmt.Sprintf("%s/%s/%s", SessionsEndpoint, url.PathEscape(sessionID), resource)
}

func withQuery(path string, params map[string]string) string {
	q := url.Values{}
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

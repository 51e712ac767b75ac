package api

import (
	"os"
	"strings"
)

const DefaultBase = "http://localhost:4000/api"

// ResolveBase picks the API root: LEASEQA_API_URL as given, else
// LEASEQA_HTTP_SERVER with "/api" appended, else DefaultBase.
func ResolveBase(getenv func(string) string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv("LEASEQA_API_URL")); v != "" {
		return strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(getenv("LEASEQA_HTTP_SERVER")); v != "" {
		return strings.TrimRight(v, "/") + "/api"
	}
	return DefaultBase
}

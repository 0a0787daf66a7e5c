package common

// Document collections kept in the credential store.
const (
	CollectionCredentials   = "credentials"
	CollectionConfiguration = "configuration"
	CollectionArchiveJobs   = "archive_jobs"
)

// Collections lists every collection the store must be able to serve.
var Collections = []string{
	CollectionCredentials,
	CollectionConfiguration,
	CollectionArchiveJobs,
}

// AuthorizationHeaderName carries the admin bearer token on API requests.
const AuthorizationHeaderName = "Authorization"

// RequestIDHeaderName is echoed back on every API response.
const RequestIDHeaderName = "X-Request-ID"

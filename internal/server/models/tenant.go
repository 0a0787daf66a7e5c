package models

// DefaultMaxBuckets applies when a tenant spec omits max_buckets.
const DefaultMaxBuckets = 10000

// AccessKeyPair is the (public, secret) pair a tenant presents to the gateway.
type AccessKeyPair struct {
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
}

// Tenant is an identity as reported by the identity registry.
type Tenant struct {
	UID         string          `json:"uid"`
	DisplayName string          `json:"display_name"`
	Email       string          `json:"email"`
	MaxBuckets  int             `json:"max_buckets"`
	Keys        []AccessKeyPair `json:"keys"`
}

// TenantSpec is the input of tenant creation. Optional fields are pointers or
// empty strings so defaults can be told apart from explicit values.
type TenantSpec struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
	MaxBuckets  *int   `json:"max_buckets,omitempty"`
	AccessKey   string `json:"access_key,omitempty"`
	SecretKey   string `json:"secret_key,omitempty"`
	// Activate requests gateway provisioning right after creation.
	Activate bool `json:"activate,omitempty"`
}

// WithDefaults returns a copy of the spec with documented defaults applied.
func (s TenantSpec) WithDefaults() TenantSpec {
	if s.DisplayName == "" {
		s.DisplayName = s.UID
	}
	if s.MaxBuckets == nil {
		n := DefaultMaxBuckets
		s.MaxBuckets = &n
	}
	return s
}

// HasKeyPair reports whether the caller supplied a complete key pair.
func (s TenantSpec) HasKeyPair() bool {
	return s.AccessKey != "" && s.SecretKey != ""
}

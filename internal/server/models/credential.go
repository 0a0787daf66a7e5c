package models

// Credential is the document stored under its access key in the
// credentials collection. It is never mutated after creation.
type Credential struct {
	UID       string `json:"uid"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
}

// NewCredential builds the document for one key pair of a tenant.
func NewCredential(uid string, key AccessKeyPair) Credential {
	return Credential{UID: uid, AccessKey: key.AccessKey, SecretKey: key.SecretKey}
}

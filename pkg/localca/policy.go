package localca

import (
	"errors"
	"fmt"
	"strings"
)

var ErrPolicyMismatch = errors.New("local-ca: subject does not satisfy the signing policy")

// SigningPolicy is the signing configuration for a single operation:
// the CA base subject the match rules are evaluated against, the store
// paths the rendered document points at, and the subject alternative
// names of the certificate being issued. A fresh value is built and
// materialized before every signing operation; nothing is read back
// from disk.
type SigningPolicy struct {
	identity Identity
	store    *Store
	sans     []string
}

func NewSigningPolicy(identity Identity, store *Store, sans []string) SigningPolicy {
	return SigningPolicy{
		identity: identity,
		store:    store,
		sans:     sans,
	}
}

// Match enforces the policy_match section in-process: country,
// province, locality and organization must equal the CA base subject.
// Common name, organizational unit and email are unconstrained.
func (policy SigningPolicy) Match(subject Subject) error {
	base := policy.identity.Subject
	fields := []struct {
		name string
		want string
		got  string
	}{
		{"countryName", base.Country, subject.Country},
		{"stateOrProvinceName", base.Province, subject.Province},
		{"localityName", base.Locality, subject.Locality},
		{"organizationName", base.Organization, subject.Organization},
	}
	for _, field := range fields {
		if field.got != field.want {
			return fmt.Errorf("%w: %s %q", ErrPolicyMismatch, field.name, field.got)
		}
	}
	return nil
}

// Render produces the openssl compatible signing configuration. The
// alt_names section is present only when the policy carries subject
// alternative names, numbered DNS.1, DNS.2, ... in input order.
func (policy SigningPolicy) Render() string {

	var sb strings.Builder
	name := policy.identity.Name
	store := policy.store

	sb.WriteString("[ ca ]\n")
	sb.WriteString("default_ca = local_ca\n")
	sb.WriteString("\n")

	sb.WriteString("[ local_ca ]\n")
	fmt.Fprintf(&sb, "dir              = %s\n", store.rootDir)
	fmt.Fprintf(&sb, "certs            = %s\n", store.certsDir)
	fmt.Fprintf(&sb, "new_certs_dir    = %s\n", store.certsDir)
	fmt.Fprintf(&sb, "database         = %s/%s\n", store.caDir, indexFile)
	fmt.Fprintf(&sb, "serial           = %s/%s\n", store.caDir, serialFile)
	fmt.Fprintf(&sb, "certificate      = %s/%s%s\n", store.certsDir, name, FSEXT_PEM)
	fmt.Fprintf(&sb, "private_key      = %s/%s%s\n", store.privateDir, name, FSEXT_PRIVATE_PEM)
	sb.WriteString("default_md       = sha256\n")
	sb.WriteString("policy           = policy_match\n")
	sb.WriteString("\n")

	sb.WriteString("[ policy_match ]\n")
	sb.WriteString("countryName            = match\n")
	sb.WriteString("stateOrProvinceName    = match\n")
	sb.WriteString("localityName           = match\n")
	sb.WriteString("organizationName       = match\n")
	sb.WriteString("organizationalUnitName = optional\n")
	sb.WriteString("commonName             = supplied\n")
	sb.WriteString("emailAddress           = optional\n")
	sb.WriteString("\n")

	sb.WriteString("[ v3_ca ]\n")
	sb.WriteString("basicConstraints       = critical, CA:TRUE\n")
	sb.WriteString("keyUsage               = critical, keyCertSign\n")
	sb.WriteString("subjectKeyIdentifier   = hash\n")
	sb.WriteString("authorityKeyIdentifier = keyid:always\n")
	sb.WriteString("\n")

	sb.WriteString("[ v3_server ]\n")
	sb.WriteString("keyUsage               = critical, digitalSignature, keyEncipherment\n")
	sb.WriteString("basicConstraints       = critical, CA:FALSE\n")
	sb.WriteString("extendedKeyUsage       = serverAuth\n")
	sb.WriteString("authorityKeyIdentifier = keyid, issuer\n")
	if len(policy.sans) > 0 {
		sb.WriteString("subjectAltName         = @alt_names\n")
		sb.WriteString("\n")
		sb.WriteString("[ alt_names ]\n")
		for i, dns := range policy.sans {
			fmt.Fprintf(&sb, "DNS.%d = %s\n", i+1, dns)
		}
	}

	return sb.String()
}
